// Package orders governs order status changes, cancellations and refunds.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/internal/inventory"
	"github.com/angelmondragon/orderflow/internal/payments"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/logger"
	"github.com/angelmondragon/orderflow/pkg/metrics"
	"github.com/angelmondragon/orderflow/pkg/outbox"
	"github.com/angelmondragon/orderflow/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow/pkg/types"
	"github.com/angelmondragon/orderflow/pkg/validators"
)

const defaultPaymentTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryReleaser returns stock held by an order's items.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, ref inventory.ItemRef, qty int) error
}

// ReferralCommissioner books a commission for a completed referred order.
type ReferralCommissioner interface {
	CreateCommission(ctx context.Context, order models.Order) error
}

// TransitionInput describes one requested status change.
type TransitionInput struct {
	OrderID uuid.UUID         `json:"order_id" validate:"required"`
	To      enums.OrderStatus `json:"to" validate:"required"`
	ActorID *uuid.UUID        `json:"actor_id"`
	Notes   *string           `json:"notes" validate:"omitempty,max=2000"`
}

type CancelInput struct {
	OrderID uuid.UUID  `json:"order_id" validate:"required"`
	Reason  string     `json:"reason" validate:"max=2000"`
	ActorID *uuid.UUID `json:"actor_id"`
}

type RefundInput struct {
	OrderID     uuid.UUID  `json:"order_id" validate:"required"`
	AmountCents int64      `json:"amount_cents" validate:"gt=0"`
	Reason      string     `json:"reason" validate:"required,max=2000"`
	ActorID     *uuid.UUID `json:"actor_id"`
}

// Params wires a Service. Gateway, Referrals, Metrics and Logger are optional.
type Params struct {
	Repo           Repository
	Tx             txRunner
	Outbox         outboxPublisher
	Inventory      InventoryReleaser
	Referrals      ReferralCommissioner
	Gateway        payments.Gateway
	Metrics        *metrics.OrderMetrics
	Logger         *logger.Logger
	PaymentTimeout time.Duration
}

type Service struct {
	repo           Repository
	tx             txRunner
	outbox         outboxPublisher
	inventory      InventoryReleaser
	referrals      ReferralCommissioner
	gateway        payments.Gateway
	metrics        *metrics.OrderMetrics
	logg           *logger.Logger
	paymentTimeout time.Duration
	now            func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(p Params) (*Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.PaymentTimeout <= 0 {
		p.PaymentTimeout = defaultPaymentTimeout
	}
	return &Service{
		repo:           p.Repo,
		tx:             p.Tx,
		outbox:         p.Outbox,
		inventory:      p.Inventory,
		referrals:      p.Referrals,
		gateway:        p.Gateway,
		metrics:        p.Metrics,
		logg:           p.Logger,
		paymentTimeout: p.PaymentTimeout,
		now:            time.Now,
	}, nil
}

// Transition moves an order along a legal edge, appends one history row and
// queues the status events atomically. Stock release and referral commission
// run after commit and never undo the transition.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.To))
	}
	if input.To == enums.OrderStatusRefunded {
		// refunded is only entered through Refund.
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders move to refunded through Refund")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		from = locked.Status
		if err := s.applyTransition(ctx, tx, repo, locked, input.To, input.ActorID, input.Notes); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, order, from)
	return order, nil
}

// Cancel is Transition to cancelled restricted to pending and processing orders.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if !cancellable(locked.Status) {
			return pkgerrors.CannotCancel(string(locked.Status))
		}
		from = locked.Status
		if err := s.applyTransition(ctx, tx, repo, locked, enums.OrderStatusCancelled, input.ActorID, optionalString(input.Reason)); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, order, from)
	return order, nil
}

// Refund records a refund against a completed or processing order. A refund
// that brings the refunded total to the grand total moves the order to
// refunded and returns its stock. Smaller refunds leave the status alone.
func (s *Service) Refund(ctx context.Context, input RefundInput) (*models.OrderRefund, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		refund          *models.OrderRefund
		order           *models.Order
		from            enums.OrderStatus
		full            bool
		gatewayRefundID *string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if full, err = checkRefund(locked, input.AmountCents); err != nil {
			return err
		}
		// Gateway refund runs with the order row locked.
		if locked.PaymentTransactionID != nil && s.gateway != nil {
			if gatewayRefundID, err = s.refundAtGateway(ctx, *locked.PaymentTransactionID, input.AmountCents, input.Reason); err != nil {
				return err
			}
		}
		from = locked.Status

		ok, err := repo.AddRefundedAmount(ctx, locked.ID, input.AmountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refunded amount")
		}
		if !ok {
			return pkgerrors.CannotRefund("refund exceeds remaining balance")
		}
		locked.RefundedAmountCents += input.AmountCents

		refund = &models.OrderRefund{
			OrderID:         locked.ID,
			AmountCents:     input.AmountCents,
			Reason:          input.Reason,
			ActorID:         input.ActorID,
			Full:            full,
			GatewayRefundID: gatewayRefundID,
		}
		if err := repo.CreateRefund(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert refund")
		}

		if full {
			notes := fmt.Sprintf("refunded %s: %s", types.FormatCents(input.AmountCents), input.Reason)
			if err := s.applyTransition(ctx, tx, repo, locked, enums.OrderStatusRefunded, input.ActorID, &notes); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   locked.ID,
			Actor:         outbox.ActorFor(input.ActorID),
			Data: payloads.OrderRefundedEvent{
				OrderID:            locked.ID,
				OrderNumber:        locked.OrderNumber,
				AmountCents:        input.AmountCents,
				RefundedTotalCents: locked.RefundedAmountCents,
				Full:               full,
				Reason:             input.Reason,
				GatewayRefundID:    gatewayRefundID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order refunded")
		}
		order = locked
		return nil
	})
	if err != nil {
		if gatewayRefundID != nil {
			s.logg.Error(s.logg.WithField(ctx, "gateway_refund_id", *gatewayRefundID),
				"gateway refund issued but not recorded", err)
		}
		return nil, err
	}

	s.metrics.IncRefund(full)
	if full {
		s.afterTransition(ctx, order, from)
	}
	return refund, nil
}

// GetOrder loads an order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID)
	}
	return order, nil
}

// ListHistory returns the audit trail oldest first.
func (s *Service) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	rows, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order history")
	}
	return rows, nil
}

func (s *Service) ListRefunds(ctx context.Context, orderID uuid.UUID) ([]models.OrderRefund, error) {
	rows, err := s.repo.ListRefunds(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order refunds")
	}
	return rows, nil
}

// ListPendingBefore returns pending orders created before cutoff.
func (s *Service) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	rows, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	return rows, nil
}

func (s *Service) lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID)
	}
	return order, nil
}

// applyTransition runs inside tx with the order row locked.
func (s *Service) applyTransition(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, to enums.OrderStatus, actorID *uuid.UUID, notes *string) error {
	from := order.Status
	if !CanTransition(from, to) {
		return pkgerrors.InvalidTransition(string(from), string(to))
	}

	moved, err := repo.UpdateStatus(ctx, order.ID, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return pkgerrors.InvalidTransition(string(from), string(to))
	}

	fromCopy := from
	if err := repo.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: &fromCopy,
		ToStatus:   to,
		ActorID:    actorID,
		Notes:      notes,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	order.Status = to

	actor := outbox.ActorFor(actorID)
	events := []outbox.DomainEvent{{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OldStatus:   from,
			NewStatus:   to,
			ActorID:     actorID,
			Notes:       notes,
		},
	}}
	if to == enums.OrderStatusCancelled {
		reason := ""
		if notes != nil {
			reason = *notes
		}
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				PreviousStatus: from,
				Reason:         reason,
			},
		})
	}
	for _, event := range events {
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(event.EventType))
		}
	}

	s.metrics.IncTransition(string(from), string(to))
	return nil
}

func (s *Service) afterTransition(ctx context.Context, order *models.Order, from enums.OrderStatus) {
	ctx = s.logg.WithFields(ctx, map[string]any{"from_status": string(from), "to_status": string(order.Status)})
	s.logg.Info(ctx, "order status changed")

	switch order.Status {
	case enums.OrderStatusCancelled:
		s.releaseStock(ctx, order.ID)
		if from == enums.OrderStatusPending {
			s.voidAuthorization(ctx, order)
		}
	case enums.OrderStatusRefunded:
		s.releaseStock(ctx, order.ID)
	case enums.OrderStatusCompleted:
		if order.ReferralCodeID != nil && s.referrals != nil {
			if err := s.referrals.CreateCommission(ctx, *order); err != nil {
				s.logg.Error(ctx, "referral commission failed", err)
			}
		}
	}
}

// releaseStock returns every item's quantity, one transaction per item so a
// vanished catalog row does not block the rest.
func (s *Service) releaseStock(ctx context.Context, orderID uuid.UUID) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "load order items for stock release", err)
		return
	}
	var errs error
	for _, item := range order.Items {
		ref := inventory.ItemRef{ProductID: item.ProductID, VariantID: item.VariantID}
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.inventory.Release(ctx, tx, ref, item.Quantity)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", ref, err))
		}
	}
	if errs != nil {
		s.logg.Error(s.logg.WithField(ctx, "failed_items", len(multierr.Errors(errs))), "stock release incomplete", errs)
	}
}

func (s *Service) voidAuthorization(ctx context.Context, order *models.Order) {
	if order.PaymentTransactionID == nil {
		return
	}
	voider, ok := s.gateway.(payments.Voider)
	if !ok {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()
	if err := voider.Void(callCtx, *order.PaymentTransactionID); err != nil {
		s.logg.Error(ctx, "void authorization after cancel", err)
	}
}

func (s *Service) refundAtGateway(ctx context.Context, transactionID string, amountCents int64, reason string) (*string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()
	result, err := s.gateway.Refund(callCtx, transactionID, amountCents, reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway refund failed")
	}
	if result.RefundID == "" {
		return nil, nil
	}
	id := result.RefundID
	return &id, nil
}

// checkRefund reports whether amount settles the order in full.
func checkRefund(order *models.Order, amountCents int64) (bool, error) {
	if !refundable(order.Status) {
		return false, pkgerrors.CannotRefund(fmt.Sprintf("order in status %s cannot be refunded", order.Status))
	}
	remaining := order.RefundableCents()
	if amountCents > remaining {
		return false, pkgerrors.CannotRefund(fmt.Sprintf("refund %s exceeds refundable %s",
			types.FormatCents(amountCents), types.FormatCents(remaining)))
	}
	full := amountCents == remaining
	if full && !CanTransition(order.Status, enums.OrderStatusRefunded) {
		return false, pkgerrors.InvalidTransition(string(order.Status), string(enums.OrderStatusRefunded))
	}
	return full, nil
}

func mapLoadError(err error, orderID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("order", orderID.String())
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
