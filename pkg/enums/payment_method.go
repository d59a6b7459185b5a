package enums

import "slices"

// PaymentMethod is how the buyer settles an order. Only card payments are
// authorized through the gateway at checkout; cash and bank transfers are
// collected outside the platform.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodNone         PaymentMethod = "none"
)

func (p PaymentMethod) IsValid() bool {
	return slices.Contains([]PaymentMethod{
		PaymentMethodCard,
		PaymentMethodCash,
		PaymentMethodBankTransfer,
		PaymentMethodNone,
	}, p)
}

func (p PaymentMethod) RequiresGateway() bool {
	return p == PaymentMethodCard
}
