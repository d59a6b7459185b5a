package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/enums"
)

// Cart is the priced snapshot a buyer checks out. Totals are computed upstream.
type Cart struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID             *uuid.UUID       `gorm:"column:user_id;type:uuid"`
	Status             enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	SubtotalCents      int64            `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountTotalCents int64            `gorm:"column:discount_total_cents;not null;default:0"`
	ShippingTotalCents int64            `gorm:"column:shipping_total_cents;not null;default:0"`
	TaxTotalCents      int64            `gorm:"column:tax_total_cents;not null;default:0"`
	GrandTotalCents    int64            `gorm:"column:grand_total_cents;not null;default:0"`
	AppliedCouponID    *uuid.UUID       `gorm:"column:applied_coupon_id;type:uuid"`
	ReferralCodeID     *uuid.UUID       `gorm:"column:referral_code_id;type:uuid"`
	ConvertedAt        *time.Time       `gorm:"column:converted_at"`
	Items              []CartItem       `gorm:"foreignKey:CartID"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

type CartItem struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CartID          uuid.UUID  `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID       uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity        int        `gorm:"column:quantity;not null"`
	UnitPriceCents  int64      `gorm:"column:unit_price_cents;not null"`
	TotalPriceCents int64      `gorm:"column:total_price_cents;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
