package payments

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/orderflow/pkg/square"
)

type squarePayments interface {
	AuthorizePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundParams) (*sq.PaymentRefund, error)
}

// SquareGateway adapts the Square client to Gateway and Voider.
type SquareGateway struct {
	client squarePayments
}

func NewSquareGateway(client squarePayments) (*SquareGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) Authorize(ctx context.Context, amountCents int64, details Details) (Authorization, error) {
	if amountCents <= 0 {
		return Authorization{}, fmt.Errorf("authorize amount must be positive, got %d", amountCents)
	}
	if strings.TrimSpace(details.SourceID) == "" {
		return Authorization{}, fmt.Errorf("payment source required")
	}
	payment, err := g.client.AuthorizePayment(ctx, square.PaymentCreateParams{
		AmountCents:    amountCents,
		CustomerID:     details.CustomerID,
		SourceID:       details.SourceID,
		IdempotencyKey: details.IdempotencyKey,
		Note:           details.Note,
		ReferenceID:    details.ReferenceID,
	})
	if err != nil {
		return Authorization{}, err
	}
	id, status := paymentFields(payment)
	if id == "" {
		return Authorization{}, fmt.Errorf("square returned payment without id")
	}
	return Authorization{TransactionID: id, Status: status}, nil
}

// Capture completes the delayed-capture payment. Square captures the full
// authorized amount, so amountCents is informational.
func (g *SquareGateway) Capture(ctx context.Context, transactionID string, amountCents int64) (Capture, error) {
	payment, err := g.client.CompletePayment(ctx, transactionID)
	if err != nil {
		return Capture{}, err
	}
	id, status := paymentFields(payment)
	if id == "" {
		id = transactionID
	}
	return Capture{TransactionID: id, Status: status}, nil
}

func (g *SquareGateway) Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (RefundResult, error) {
	if amountCents <= 0 {
		return RefundResult{}, fmt.Errorf("refund amount must be positive, got %d", amountCents)
	}
	refund, err := g.client.RefundPayment(ctx, square.RefundParams{
		PaymentID:   transactionID,
		AmountCents: amountCents,
		Reason:      reason,
	})
	if err != nil {
		return RefundResult{}, err
	}
	if refund == nil {
		return RefundResult{}, nil
	}
	result := RefundResult{RefundID: refund.GetID()}
	if status := refund.GetStatus(); status != nil {
		result.Status = *status
	}
	return result, nil
}

func (g *SquareGateway) Void(ctx context.Context, transactionID string) error {
	_, err := g.client.CancelPayment(ctx, transactionID)
	return err
}

func paymentFields(payment *sq.Payment) (string, string) {
	if payment == nil {
		return "", ""
	}
	var id, status string
	if v := payment.GetID(); v != nil {
		id = *v
	}
	if v := payment.GetStatus(); v != nil {
		status = *v
	}
	return id, status
}
