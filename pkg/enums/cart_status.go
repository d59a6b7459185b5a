package enums

// CartStatus tracks whether a cart can still be checked out. A cart moves
// from active to converted exactly once, in the transaction that creates its
// order.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
)

func (c CartStatus) String() string {
	return string(c)
}

// CanCheckout reports whether an order may still be created from the cart.
func (c CartStatus) CanCheckout() bool {
	return c == CartStatusActive
}
