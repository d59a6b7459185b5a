package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow/internal/payments"
	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/types"
	"github.com/angelmondragon/orderflow/pkg/validators"
)

// CreateOrderInput captures everything checkout needs beyond the cart itself.
type CreateOrderInput struct {
	CartID          uuid.UUID           `json:"cart_id" validate:"required"`
	UserID          *uuid.UUID          `json:"user_id"`
	BillingAddress  *types.Address      `json:"billing_address"`
	ShippingAddress *types.Address      `json:"shipping_address"`
	CustomerNotes   *string             `json:"customer_notes" validate:"omitempty,max=2000"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	Payment         *PaymentRequest     `json:"payment"`
	IdempotencyKey  string              `json:"idempotency_key" validate:"max=255"`
}

// PaymentRequest asks checkout to charge the grand total through the gateway.
type PaymentRequest struct {
	Details       payments.Details `json:"details"`
	AuthorizeOnly bool             `json:"authorize_only"`
}

// validateInput checks input and swaps its addresses for normalized copies.
func validateInput(input *CreateOrderInput) error {
	if err := validators.Struct(input); err != nil {
		return err
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]string{"payment_method": string(input.PaymentMethod)})
	}
	if input.Payment != nil && !input.PaymentMethod.RequiresGateway() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment details supplied for a method that is not charged online").
			WithDetails(map[string]string{"payment_method": string(input.PaymentMethod)})
	}
	var err error
	if input.BillingAddress, err = normalizeAddress("billing_address", input.BillingAddress); err != nil {
		return err
	}
	if input.ShippingAddress, err = normalizeAddress("shipping_address", input.ShippingAddress); err != nil {
		return err
	}
	return nil
}

// normalizeAddress returns a normalized copy of addr; addr itself is not touched.
func normalizeAddress(name string, addr *types.Address) (*types.Address, error) {
	if addr == nil {
		return nil, nil
	}
	normalized := addr.Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]string{name: err.Error()})
	}
	return &normalized, nil
}
