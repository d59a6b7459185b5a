// Package checkout turns a cart snapshot into a committed order.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/internal/cart"
	"github.com/angelmondragon/orderflow/internal/inventory"
	"github.com/angelmondragon/orderflow/internal/orders"
	"github.com/angelmondragon/orderflow/internal/payments"
	"github.com/angelmondragon/orderflow/pkg/db"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/idempotency"
	"github.com/angelmondragon/orderflow/pkg/logger"
	"github.com/angelmondragon/orderflow/pkg/metrics"
	"github.com/angelmondragon/orderflow/pkg/outbox"
	"github.com/angelmondragon/orderflow/pkg/outbox/payloads"
)

const (
	idempotencyScope      = "checkout"
	defaultPaymentTimeout = 10 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberAllocator interface {
	Allocate(ctx context.Context, tx *gorm.DB) (string, error)
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, ref inventory.ItemRef, qty int) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idempotencyGuard interface {
	Claim(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

var _ idempotencyGuard = (*idempotency.Manager)(nil)

// Params wires a Service. Gateway, Idempotency, Metrics and Logger are optional.
type Params struct {
	Tx             txRunner
	Carts          cart.Repository
	Orders         orders.Repository
	Numbers        numberAllocator
	Inventory      stockReserver
	Outbox         outboxPublisher
	Gateway        payments.Gateway
	Idempotency    idempotencyGuard
	Metrics        *metrics.CheckoutMetrics
	Logger         *logger.Logger
	PaymentTimeout time.Duration
}

// Service executes the order creation saga.
type Service struct {
	tx             txRunner
	carts          cart.Repository
	orders         orders.Repository
	numbers        numberAllocator
	inventory      stockReserver
	outbox         outboxPublisher
	gateway        payments.Gateway
	idempotency    idempotencyGuard
	metrics        *metrics.CheckoutMetrics
	logg           *logger.Logger
	paymentTimeout time.Duration
	now            func() time.Time
}

// NewService builds the checkout service.
func NewService(p Params) (*Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Numbers == nil {
		return nil, fmt.Errorf("order number allocator required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.PaymentTimeout <= 0 {
		p.PaymentTimeout = defaultPaymentTimeout
	}
	return &Service{
		tx:             p.Tx,
		carts:          p.Carts,
		orders:         p.Orders,
		numbers:        p.Numbers,
		inventory:      p.Inventory,
		outbox:         p.Outbox,
		gateway:        p.Gateway,
		idempotency:    p.Idempotency,
		metrics:        p.Metrics,
		logg:           p.Logger,
		paymentTimeout: p.PaymentTimeout,
		now:            time.Now,
	}, nil
}

// payment tracks what the gateway holds so a failed saga can hand it back.
type payment struct {
	transactionID string
	amountCents   int64
	captured      bool
}

// CreateOrder converts the cart into an order in one transaction: number
// allocation, stock reservation, optional payment, order and item rows, the
// first history row, cart conversion and the order_created event all commit
// together or not at all.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	started := s.now()
	if err := validateInput(&input); err != nil {
		s.metrics.IncFailed(string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	ctx = s.logg.WithCartID(ctx, input.CartID.String())

	if input.IdempotencyKey != "" && s.idempotency != nil {
		claimed, err := s.idempotency.Claim(ctx, idempotencyScope, input.IdempotencyKey)
		if err != nil {
			return nil, s.fail(ctx, started, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
		}
		if !claimed {
			return nil, s.fail(ctx, started, pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already submitted with this idempotency key").
				WithDetails(map[string]string{"idempotency_key": input.IdempotencyKey}))
		}
	}

	var (
		order *models.Order
		held  *payment
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.run(ctx, tx, input, &held)
		return err
	})
	if err != nil {
		if held != nil {
			s.compensate(ctx, held)
		}
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if rerr := s.idempotency.Release(ctx, idempotencyScope, input.IdempotencyKey); rerr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", rerr.Error()), "release idempotency key")
			}
		}
		return nil, s.fail(ctx, started, err)
	}

	s.metrics.IncCreated(string(order.Status))
	s.metrics.ObserveDuration(s.now().Sub(started))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       string(order.Status),
	}), "order created")
	return order, nil
}

func (s *Service) run(ctx context.Context, tx *gorm.DB, input CreateOrderInput, held **payment) (*models.Order, error) {
	carts := s.carts.WithTx(tx)
	orderRepo := s.orders.WithTx(tx)

	record, err := carts.FindWithItems(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	if !record.Status.CanCheckout() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart already processed")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart contains no items")
	}
	if err := verifyLines(record); err != nil {
		return nil, err
	}
	if input.Payment != nil {
		if s.gateway == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, payments.ErrNotConfigured, "charge order")
		}
		if record.GrandTotalCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to charge for a zero total")
		}
	}

	number, err := s.numbers.Allocate(ctx, tx)
	if err != nil {
		return nil, err
	}

	for _, item := range record.Items {
		ref := inventory.ItemRef{ProductID: item.ProductID, VariantID: item.VariantID}
		if err := s.inventory.Reserve(ctx, tx, ref, item.Quantity); err != nil {
			return nil, err
		}
	}

	status := enums.OrderStatusPending
	var transactionID *string
	if input.Payment != nil {
		p, err := s.charge(ctx, record.GrandTotalCents, number, *input.Payment, held)
		if err != nil {
			return nil, err
		}
		transactionID = &p.transactionID
		if p.captured {
			status = enums.OrderStatusProcessing
		}
	}

	order := &models.Order{
		OrderNumber:          number,
		Status:               status,
		UserID:               firstUserID(input.UserID, record.UserID),
		CartID:               record.ID,
		SubtotalCents:        record.SubtotalCents,
		DiscountTotalCents:   record.DiscountTotalCents,
		ShippingTotalCents:   record.ShippingTotalCents,
		TaxTotalCents:        record.TaxTotalCents,
		GrandTotalCents:      record.GrandTotalCents,
		BillingAddress:       input.BillingAddress,
		ShippingAddress:      input.ShippingAddress,
		CustomerNotes:        input.CustomerNotes,
		PaymentMethod:        input.PaymentMethod,
		PaymentTransactionID: transactionID,
		AppliedCouponID:      record.AppliedCouponID,
		ReferralCodeID:       record.ReferralCodeID,
	}
	if err := orderRepo.CreateOrder(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number taken concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}

	snapshots, err := loadSnapshots(ctx, tx, record.Items)
	if err != nil {
		return nil, err
	}
	items := make([]models.OrderItem, 0, len(record.Items))
	for _, line := range record.Items {
		items = append(items, models.OrderItem{
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			VariantID:       line.VariantID,
			Quantity:        line.Quantity,
			UnitPriceCents:  line.UnitPriceCents,
			TotalPriceCents: line.TotalPriceCents,
			ProductSnapshot: snapshots[line.ID],
		})
	}
	if err := verifyItems(items, order.SubtotalCents); err != nil {
		return nil, err
	}
	if err := orderRepo.CreateOrderItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order items")
	}
	order.Items = items

	if err := orderRepo.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:  order.ID,
		ToStatus: status,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}

	if err := carts.MarkConverted(ctx, record.ID, s.now()); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.ActorFor(order.UserID),
		Data: payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			CartID:          order.CartID,
			UserID:          order.UserID,
			Status:          order.Status,
			PaymentMethod:   order.PaymentMethod,
			GrandTotalCents: order.GrandTotalCents,
			ItemCount:       len(items),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
	}
	return order, nil
}

// charge authorizes and, unless asked not to, captures amount. Each gateway
// call gets its own deadline.
func (s *Service) charge(ctx context.Context, amount int64, orderNumber string, req PaymentRequest, held **payment) (*payment, error) {
	details := req.Details
	if details.ReferenceID == "" {
		details.ReferenceID = orderNumber
	}

	authCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	auth, err := s.gateway.Authorize(authCtx, amount, details)
	cancel()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentAuthorizationFailed, err, "authorize payment").
			WithDetails(pkgerrors.PaymentDetails{Stage: "authorize"})
	}
	p := &payment{transactionID: auth.TransactionID, amountCents: amount}
	*held = p
	if req.AuthorizeOnly {
		return p, nil
	}

	captureCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	_, err = s.gateway.Capture(captureCtx, auth.TransactionID, amount)
	cancel()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentCaptureFailed, err, "capture payment").
			WithDetails(pkgerrors.PaymentDetails{Stage: "capture", TransactionID: auth.TransactionID})
	}
	p.captured = true
	return p, nil
}

// compensate hands money back after the transaction rolled back: captured
// funds are refunded, bare authorizations voided.
func (s *Service) compensate(ctx context.Context, held *payment) {
	ctx = s.logg.WithField(ctx, "transaction_id", held.transactionID)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.paymentTimeout)
	defer cancel()

	if held.captured {
		_, err := s.gateway.Refund(callCtx, held.transactionID, held.amountCents, "checkout rolled back")
		s.metrics.IncCompensation("refund", err == nil)
		if err != nil {
			s.logg.Error(ctx, "refund after failed checkout", err)
		}
		return
	}
	voider, ok := s.gateway.(payments.Voider)
	if !ok {
		s.logg.Warn(ctx, "gateway cannot void; authorization left to expire")
		return
	}
	err := voider.Void(callCtx, held.transactionID)
	s.metrics.IncCompensation("void", err == nil)
	if err != nil {
		s.logg.Error(ctx, "void after failed checkout", err)
	}
}

func (s *Service) fail(ctx context.Context, started time.Time, err error) error {
	code := pkgerrors.CodeOf(err)
	s.metrics.IncFailed(string(code))
	s.metrics.ObserveDuration(s.now().Sub(started))
	if pkgerrors.Retryable(err) {
		s.logg.Error(ctx, "checkout failed", err)
		return err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"code":  string(code),
		"error": pkgerrors.Dump(err),
	}), "checkout rejected")
	return err
}

// verifyLines rejects carts whose lines do not add up before anything is reserved.
func verifyLines(record *models.Cart) error {
	var sum int64
	for _, item := range record.Items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line quantity must be positive").
				WithDetails(map[string]string{"cart_item_id": item.ID.String()})
		}
		if item.UnitPriceCents < 0 || item.TotalPriceCents != int64(item.Quantity)*item.UnitPriceCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line total does not match quantity times unit price").
				WithDetails(map[string]string{"cart_item_id": item.ID.String()})
		}
		sum += item.TotalPriceCents
	}
	if sum != record.SubtotalCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart subtotal does not match its lines").
			WithDetails(map[string]int64{"lines": sum, "subtotal": record.SubtotalCents})
	}
	for name, v := range map[string]int64{
		"discount_total": record.DiscountTotalCents,
		"shipping_total": record.ShippingTotalCents,
		"tax_total":      record.TaxTotalCents,
		"grand_total":    record.GrandTotalCents,
	} {
		if v < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, name+" must not be negative")
		}
	}
	return nil
}

func verifyItems(items []models.OrderItem, subtotal int64) error {
	var sum int64
	for _, item := range items {
		if item.TotalPriceCents != int64(item.Quantity)*item.UnitPriceCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "order item total does not match quantity times unit price")
		}
		sum += item.TotalPriceCents
	}
	if sum != subtotal {
		return pkgerrors.New(pkgerrors.CodeValidation, "order items do not sum to subtotal")
	}
	return nil
}

func firstUserID(ids ...*uuid.UUID) *uuid.UUID {
	for _, id := range ids {
		if id != nil && *id != uuid.Nil {
			return id
		}
	}
	return nil
}
