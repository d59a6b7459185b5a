package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/enums"
	"github.com/angelmondragon/orderflow/pkg/types"
)

// Order is the durable record produced by checkout. Rows are never deleted.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string              `gorm:"column:order_number;not null;uniqueIndex"`
	Status               enums.OrderStatus   `gorm:"column:status;type:text;not null;index"`
	UserID               *uuid.UUID          `gorm:"column:user_id;type:uuid"`
	CartID               uuid.UUID           `gorm:"column:cart_id;type:uuid;not null"`
	SubtotalCents        int64               `gorm:"column:subtotal_cents;not null"`
	DiscountTotalCents   int64               `gorm:"column:discount_total_cents;not null"`
	ShippingTotalCents   int64               `gorm:"column:shipping_total_cents;not null"`
	TaxTotalCents        int64               `gorm:"column:tax_total_cents;not null"`
	GrandTotalCents      int64               `gorm:"column:grand_total_cents;not null"`
	RefundedAmountCents  int64               `gorm:"column:refunded_amount_cents;not null;default:0"`
	BillingAddress       *types.Address      `gorm:"column:billing_address;type:jsonb;serializer:json"`
	ShippingAddress      *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	CustomerNotes        *string             `gorm:"column:customer_notes"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentTransactionID *string             `gorm:"column:payment_transaction_id"`
	AppliedCouponID      *uuid.UUID          `gorm:"column:applied_coupon_id;type:uuid"`
	ReferralCodeID       *uuid.UUID          `gorm:"column:referral_code_id;type:uuid"`
	Items                []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// RefundableCents is what remains of the grand total after prior refunds.
func (o *Order) RefundableCents() int64 {
	remaining := o.GrandTotalCents - o.RefundedAmountCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OrderItem is a line frozen at creation. TotalPriceCents is never recomputed.
type OrderItem struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID            `gorm:"column:variant_id;type:uuid"`
	Quantity        int                   `gorm:"column:quantity;not null"`
	UnitPriceCents  int64                 `gorm:"column:unit_price_cents;not null"`
	TotalPriceCents int64                 `gorm:"column:total_price_cents;not null"`
	ProductSnapshot types.ProductSnapshot `gorm:"column:product_snapshot;type:jsonb;serializer:json;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// OrderStatusHistory is the append-only audit trail of status changes.
// Sequence numbers rows per order starting at 1.
type OrderStatusHistory struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index;uniqueIndex:idx_order_status_history_order_seq,priority:1"`
	Sequence   int                `gorm:"column:sequence;not null;uniqueIndex:idx_order_status_history_order_seq,priority:2"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:text"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:text;not null"`
	ActorID    *uuid.UUID         `gorm:"column:actor_id;type:uuid"`
	Notes      *string            `gorm:"column:notes"`
	CreatedAt  time.Time          `gorm:"column:created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	return nil
}

// OrderRefund records one refund against an order, partial or full.
type OrderRefund struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents     int64      `gorm:"column:amount_cents;not null"`
	Reason          string     `gorm:"column:reason;not null"`
	ActorID         *uuid.UUID `gorm:"column:actor_id;type:uuid"`
	Full            bool       `gorm:"column:is_full;not null;default:false"`
	GatewayRefundID *string    `gorm:"column:gateway_refund_id"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *OrderRefund) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
