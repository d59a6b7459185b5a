package errors

import "fmt"

// InsufficientStockDetails identifies the counter that could not cover a reservation.
type InsufficientStockDetails struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Requested int     `json:"requested"`
	Available int     `json:"available"`
}

// TransitionDetails carries the rejected edge of the order state machine.
type TransitionDetails struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PaymentDetails struct {
	Stage         string `json:"stage"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func InsufficientStock(details InsufficientStockDetails) *Error {
	msg := fmt.Sprintf("product %s: requested %d, available %d", details.ProductID, details.Requested, details.Available)
	if details.VariantID != nil {
		msg = fmt.Sprintf("product %s variant %s: requested %d, available %d", details.ProductID, *details.VariantID, details.Requested, details.Available)
	}
	return New(CodeInsufficientStock, msg).WithDetails(details)
}

func InvalidTransition(from, to string) *Error {
	return New(CodeInvalidStatusTransition, fmt.Sprintf("transition %s -> %s is not allowed", from, to)).
		WithDetails(TransitionDetails{From: from, To: to})
}

func CannotCancel(status string) *Error {
	return New(CodeCannotCancel, fmt.Sprintf("order in status %s cannot be cancelled", status)).
		WithDetails(map[string]string{"status": status})
}

func CannotRefund(reason string) *Error {
	return New(CodeCannotRefund, reason)
}

func NotFound(resource, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s %s not found", resource, id))
}
