package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/orderflow/pkg/config"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
	errPaymentIDRequired   = errors.New("square payment id is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

var sensitiveKeys = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

// Client covers the slice of Square used for order payments: delayed-capture
// authorization, capture, void and refund.
type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	currency    string
	logger      *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	c := &Client{
		sdk: sqclient.NewClient(
			sqoption.WithBaseURL(baseURLs[env]),
			sqoption.WithToken(accessToken),
		),
		environment: env,
		locationID:  locationID,
		currency:    strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		logger:      logg,
	}
	logg.Info(logg.WithField(ctx, "environment", env), "square client initialized")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// NewIdempotencyKey returns prefix-<uuid>.
func (c *Client) NewIdempotencyKey(prefix string) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "of"
	}
	return prefix + "-" + uuid.NewString()
}

// AuthorizePayment holds funds without capturing them. The hold stays until
// CompletePayment or CancelPayment.
func (c *Client) AuthorizePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}
	if strings.TrimSpace(params.Currency) == "" {
		params.Currency = c.currency
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.authorize", params.IdempotencyKey))

	return call(ctx, c, "authorize_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
		"source_token": params.SourceID,
	}, func() (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Create(ctx, req)
		return resp.GetPayment(), err
	}, paymentFields)
}

func (c *Client) CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if paymentID = strings.TrimSpace(paymentID); paymentID == "" {
		return nil, errPaymentIDRequired
	}
	return call(ctx, c, "complete_payment", map[string]any{"payment_id": paymentID}, func() (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Complete(ctx, &sq.CompletePaymentRequest{PaymentID: paymentID})
		return resp.GetPayment(), err
	}, paymentFields)
}

// CancelPayment voids an authorization that was never captured.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if paymentID = strings.TrimSpace(paymentID); paymentID == "" {
		return nil, errPaymentIDRequired
	}
	return call(ctx, c, "cancel_payment", map[string]any{"payment_id": paymentID}, func() (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Cancel(ctx, &sq.CancelPaymentsRequest{PaymentID: paymentID})
		return resp.GetPayment(), err
	}, paymentFields)
}

// RefundPayment returns part or all of a captured payment.
func (c *Client) RefundPayment(ctx context.Context, params RefundParams) (*sq.PaymentRefund, error) {
	if strings.TrimSpace(params.PaymentID) == "" {
		return nil, errPaymentIDRequired
	}
	if strings.TrimSpace(params.Currency) == "" {
		params.Currency = c.currency
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.refund", params.IdempotencyKey))

	return call(ctx, c, "refund_payment", map[string]any{
		"payment_id": params.PaymentID,
		"amount":     params.AmountCents,
	}, func() (*sq.PaymentRefund, error) {
		resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
		return resp.GetRefund(), err
	}, func(r *sq.PaymentRefund) map[string]any {
		return map[string]any{"refund_id": r.GetID(), "status": deref(r.GetStatus())}
	})
}

// call logs the request, runs fn and either logs the response fields or maps
// the failure onto a typed error.
func call[T any](ctx context.Context, c *Client, op string, req map[string]any, fn func() (T, error), describe func(T) map[string]any) (T, error) {
	ctx = c.logger.WithField(ctx, "operation", op)
	c.logger.Debug(c.logger.WithFields(ctx, redact(req)), "square request")

	out, err := fn()
	if err != nil {
		mapped := mapSquareError(err, op)
		c.logger.Error(ctx, "square "+op+" failed", mapped)
		return out, mapped
	}
	c.logger.Info(c.logger.WithFields(ctx, describe(out)), "square "+op)
	return out, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func redact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
		lower := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = "[REDACTED]"
				break
			}
		}
	}
	return out
}

// mapSquareError picks a domain code from the HTTP status, then lets a
// reused idempotency key or a payment-method error in the body override it.
func mapSquareError(err error, op string) error {
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}

	code := domainCodeForStatus(apiErr.StatusCode)
	for _, sqErr := range squareErrors(apiErr) {
		switch {
		case sqErr == nil:
		case sqErr.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case sqErr.Category == sq.ErrorCategoryPaymentMethodError:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

// squareErrors decodes the {"errors":[...]} body the SDK keeps as the
// wrapped error text.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body); err != nil {
		return nil
	}
	return body.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

func paymentFields(p *sq.Payment) map[string]any {
	return map[string]any{"payment_id": deref(p.GetID()), "status": deref(p.GetStatus())}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(raw))
	if env == "" {
		return sandboxEnv, nil
	}
	if _, ok := baseURLs[env]; !ok {
		return "", errInvalidSquareEnv
	}
	return env, nil
}
