package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/orderflow/internal/orders"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/logger"
)

const (
	defaultPendingOrderTTL = 72 * time.Hour
	defaultExpiryBatchSize = 200
)

// PendingOrderExpiryJobParams configure the pending order sweep.
type PendingOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderCanceller
	TTL       time.Duration
	BatchSize int
}

type pendingOrderCanceller interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error)
}

// NewPendingOrderExpiryJob builds the job that cancels orders left pending past the TTL.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &pendingOrderExpiryJob{
		logg:  params.Logger,
		svc:   params.Orders,
		ttl:   ttl,
		batch: batch,
		now:   time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg  *logger.Logger
	svc   pendingOrderCanceller
	ttl   time.Duration
	batch int
	now   func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return "pending-order-expiry" }

// Run cancels one batch of stale pending orders. Each order is cancelled in
// its own transaction so one failure does not hold back the rest.
func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.svc.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders for expiry: %w", err)
	}

	notes := fmt.Sprintf("expired: pending for more than %s", j.ttl)
	var (
		errs    error
		expired int
		skipped int
	)
	for _, order := range stale {
		_, err := j.svc.Cancel(ctx, orders.CancelInput{OrderID: order.ID, Reason: notes})
		switch {
		case err == nil:
			expired++
		case pkgerrors.HasCode(err, pkgerrors.CodeCannotCancel):
			// moved on since the query; nothing to expire
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
		"skipped": skipped,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return errs
}
