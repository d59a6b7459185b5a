// Package payments defines the gateway contract checkout and refunds depend on.
package payments

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a flow needs a gateway that was never wired.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Details is the payment instrument the buyer supplied at checkout.
type Details struct {
	SourceID       string
	CustomerID     string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

type Authorization struct {
	TransactionID string
	Status        string
}

type Capture struct {
	TransactionID string
	Status        string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// Gateway authorizes, captures and refunds card payments. Amounts are in
// minor units.
type Gateway interface {
	Authorize(ctx context.Context, amountCents int64, details Details) (Authorization, error)
	Capture(ctx context.Context, transactionID string, amountCents int64) (Capture, error)
	Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (RefundResult, error)
}

// Voider is implemented by gateways that can release an uncaptured authorization.
type Voider interface {
	Void(ctx context.Context, transactionID string) error
}
