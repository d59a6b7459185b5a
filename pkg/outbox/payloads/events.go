package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow/pkg/enums"
)

// OrderCreatedEvent is emitted once per committed checkout.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	CartID          uuid.UUID           `json:"cart_id"`
	UserID          *uuid.UUID          `json:"user_id,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	GrandTotalCents int64               `json:"grand_total_cents"`
	ItemCount       int                 `json:"item_count"`
}

// OrderStatusChangedEvent is emitted for every audited status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OldStatus   enums.OrderStatus `json:"old_status"`
	NewStatus   enums.OrderStatus `json:"new_status"`
	ActorID     *uuid.UUID        `json:"actor_id,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
}

// OrderCancelledEvent is emitted when an order enters cancelled.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Reason         string            `json:"reason,omitempty"`
}

// OrderRefundedEvent is emitted for partial and full refunds alike.
type OrderRefundedEvent struct {
	OrderID            uuid.UUID `json:"order_id"`
	OrderNumber        string    `json:"order_number"`
	AmountCents        int64     `json:"amount_cents"`
	RefundedTotalCents int64     `json:"refunded_total_cents"`
	Full               bool      `json:"full"`
	Reason             string    `json:"reason"`
	GatewayRefundID    *string   `json:"gateway_refund_id,omitempty"`
}

// StockMovementEvent backs both stock_reserved and stock_released.
type StockMovementEvent struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
}

// ReferralCommissionRequestedEvent asks the referrals service to book a commission.
type ReferralCommissionRequestedEvent struct {
	OrderID         uuid.UUID  `json:"order_id"`
	OrderNumber     string     `json:"order_number"`
	ReferralCodeID  uuid.UUID  `json:"referral_code_id"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	GrandTotalCents int64      `json:"grand_total_cents"`
}
