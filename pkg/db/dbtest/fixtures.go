package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
)

// SeedProduct inserts a tracked (or untracked) product.
func SeedProduct(t testing.TB, conn *gorm.DB, sku string, track bool, qty int) models.Product {
	t.Helper()
	p := models.Product{
		SKU:           sku,
		Name:          "Product " + sku,
		ProductType:   "physical",
		Images:        []string{"https://cdn.example.com/" + sku + ".png"},
		TrackStock:    track,
		StockQuantity: qty,
	}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedVariant inserts a variant counter under productID.
func SeedVariant(t testing.TB, conn *gorm.DB, productID uuid.UUID, sku string, track bool, qty int) models.ProductVariant {
	t.Helper()
	v := models.ProductVariant{
		ProductID:     productID,
		SKU:           sku,
		Name:          "Variant " + sku,
		Attributes:    map[string]string{"size": "M"},
		TrackStock:    track,
		StockQuantity: qty,
	}
	if err := conn.Create(&v).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return v
}

// CartLine describes one cart line for SeedCart.
type CartLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	UnitCents int64
}

// SeedCart inserts an active cart whose subtotal and grand total equal the sum of its lines.
func SeedCart(t testing.TB, conn *gorm.DB, lines ...CartLine) models.Cart {
	t.Helper()
	cart := models.Cart{Status: enums.CartStatusActive}
	for _, line := range lines {
		total := int64(line.Quantity) * line.UnitCents
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:       line.ProductID,
			VariantID:       line.VariantID,
			Quantity:        line.Quantity,
			UnitPriceCents:  line.UnitCents,
			TotalPriceCents: total,
		})
		cart.SubtotalCents += total
	}
	cart.GrandTotalCents = cart.SubtotalCents
	if err := conn.Create(&cart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return cart
}
