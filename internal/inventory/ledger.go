// Package inventory owns the stock counters on products and variants.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/metrics"
	"github.com/angelmondragon/orderflow/pkg/outbox"
	"github.com/angelmondragon/orderflow/pkg/outbox/payloads"
)

const (
	productsTable = "products"
	variantsTable = "product_variants"

	resultReserved     = "reserved"
	resultUntracked    = "untracked"
	resultInsufficient = "insufficient"
)

// ItemRef identifies a stock counter: the variant's when VariantID is set, the product's otherwise.
type ItemRef struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

func (r ItemRef) String() string {
	if r.VariantID != nil {
		return fmt.Sprintf("%s/%s", r.ProductID, *r.VariantID)
	}
	return r.ProductID.String()
}

func (r ItemRef) aggregateID() uuid.UUID {
	if r.VariantID != nil {
		return *r.VariantID
	}
	return r.ProductID
}

// Availability is an advisory snapshot of a counter.
type Availability struct {
	Tracked  bool
	Quantity int
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Ledger reserves and releases stock inside the caller's transaction.
type Ledger struct {
	db      *gorm.DB
	outbox  outboxPublisher
	metrics *metrics.InventoryMetrics
}

// NewLedger builds a ledger. publisher and m may be nil.
func NewLedger(db *gorm.DB, publisher outboxPublisher, m *metrics.InventoryMetrics) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Ledger{db: db, outbox: publisher, metrics: m}, nil
}

type counter struct {
	TrackStock    bool
	StockQuantity int
}

// Reserve takes qty units from the counter. The decrement is a single
// conditional UPDATE so concurrent reservations can never drive a tracked
// counter negative.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, ref ItemRef, qty int) error {
	if err := validate(tx, ref, qty); err != nil {
		return err
	}

	table, where, args := target(ref)
	res := tx.WithContext(ctx).Exec(
		"UPDATE "+table+" SET stock_quantity = stock_quantity - ?, updated_at = CURRENT_TIMESTAMP WHERE "+where+" AND track_stock = ? AND stock_quantity >= ?",
		append(append([]any{qty}, args...), true, qty)...,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		l.metrics.IncReservation(resultReserved)
		return l.emit(ctx, tx, enums.EventStockReserved, ref, qty)
	}

	current, err := l.load(ctx, tx, ref)
	if err != nil {
		return err
	}
	if !current.TrackStock {
		l.metrics.IncReservation(resultUntracked)
		return nil
	}

	l.metrics.IncReservation(resultInsufficient)
	return pkgerrors.InsufficientStock(pkgerrors.InsufficientStockDetails{
		ProductID: ref.ProductID.String(),
		VariantID: variantString(ref.VariantID),
		Requested: qty,
		Available: current.StockQuantity,
	})
}

// Release returns qty units to a tracked counter. Untracked counters are left alone.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, ref ItemRef, qty int) error {
	if err := validate(tx, ref, qty); err != nil {
		return err
	}

	table, where, args := target(ref)
	res := tx.WithContext(ctx).Exec(
		"UPDATE "+table+" SET stock_quantity = stock_quantity + ?, updated_at = CURRENT_TIMESTAMP WHERE "+where+" AND track_stock = ?",
		append(append([]any{qty}, args...), true)...,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 1 {
		l.metrics.IncRelease()
		return l.emit(ctx, tx, enums.EventStockReleased, ref, qty)
	}

	if _, err := l.load(ctx, tx, ref); err != nil {
		return err
	}
	return nil
}

// Check reads the counter outside any transaction. The answer may be stale
// by the time the caller acts on it.
func (l *Ledger) Check(ctx context.Context, ref ItemRef) (Availability, error) {
	if ref.ProductID == uuid.Nil {
		return Availability{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	current, err := l.load(ctx, l.db, ref)
	if err != nil {
		return Availability{}, err
	}
	return Availability{Tracked: current.TrackStock, Quantity: current.StockQuantity}, nil
}

func (l *Ledger) load(ctx context.Context, conn *gorm.DB, ref ItemRef) (*counter, error) {
	table, where, args := target(ref)
	var c counter
	err := conn.WithContext(ctx).
		Table(table).
		Select("track_stock, stock_quantity").
		Where(where, args...).
		Take(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if ref.VariantID != nil {
				return nil, pkgerrors.NotFound("variant", ref.VariantID.String())
			}
			return nil, pkgerrors.NotFound("product", ref.ProductID.String())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock counter")
	}
	return &c, nil
}

func (l *Ledger) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, ref ItemRef, qty int) error {
	if l.outbox == nil {
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateInventory,
		AggregateID:   ref.aggregateID(),
		Actor:         outbox.ActorFor(nil),
		Data: payloads.StockMovementEvent{
			ProductID: ref.ProductID,
			VariantID: ref.VariantID,
			Quantity:  qty,
		},
	}
	if err := l.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock event")
	}
	return nil
}

func validate(tx *gorm.DB, ref ItemRef, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock mutation")
	}
	if ref.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if ref.VariantID != nil && *ref.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id must not be nil uuid")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be positive, got %d", qty))
	}
	return nil
}

func target(ref ItemRef) (string, string, []any) {
	if ref.VariantID != nil {
		return variantsTable, "id = ? AND product_id = ?", []any{*ref.VariantID, ref.ProductID}
	}
	return productsTable, "id = ?", []any{ref.ProductID}
}

func variantString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
