package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/types"
)

// loadSnapshots reads the catalog rows for every line once and freezes them.
func loadSnapshots(ctx context.Context, tx *gorm.DB, items []models.CartItem) (map[uuid.UUID]types.ProductSnapshot, error) {
	productIDs := make([]uuid.UUID, 0, len(items))
	variantIDs := make([]uuid.UUID, 0)
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
		if item.VariantID != nil {
			variantIDs = append(variantIDs, *item.VariantID)
		}
	}

	var products []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products for snapshot")
	}
	productByID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	variantByID := map[uuid.UUID]models.ProductVariant{}
	if len(variantIDs) > 0 {
		var variants []models.ProductVariant
		if err := tx.WithContext(ctx).Where("id IN ?", variantIDs).Find(&variants).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants for snapshot")
		}
		for _, v := range variants {
			variantByID[v.ID] = v
		}
	}

	out := make(map[uuid.UUID]types.ProductSnapshot, len(items))
	for _, item := range items {
		product, ok := productByID[item.ProductID]
		if !ok {
			return nil, pkgerrors.NotFound("product", item.ProductID.String())
		}
		snap := types.ProductSnapshot{
			Name:        product.Name,
			SKU:         product.SKU,
			Description: product.Description,
			ProductType: product.ProductType,
			Images:      append([]string(nil), product.Images...),
		}
		if item.VariantID != nil {
			variant, ok := variantByID[*item.VariantID]
			if !ok {
				return nil, pkgerrors.NotFound("variant", item.VariantID.String())
			}
			name, sku := variant.Name, variant.SKU
			snap.VariantName = &name
			snap.VariantSKU = &sku
			snap.VariantAttributes = make(map[string]string, len(variant.Attributes))
			for k, v := range variant.Attributes {
				snap.VariantAttributes[k] = v
			}
		}
		out[item.ID] = snap
	}
	return out, nil
}
