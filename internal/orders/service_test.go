package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow/internal/inventory"
	"github.com/angelmondragon/orderflow/internal/payments"
	"github.com/angelmondragon/orderflow/pkg/db"
	"github.com/angelmondragon/orderflow/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/outbox"
	"github.com/angelmondragon/orderflow/pkg/types"
)

type stubGateway struct {
	mu        sync.Mutex
	refunds   []int64
	voids     []string
	refundErr error
}

func (g *stubGateway) Authorize(context.Context, int64, payments.Details) (payments.Authorization, error) {
	return payments.Authorization{}, errors.New("not used")
}

func (g *stubGateway) Capture(context.Context, string, int64) (payments.Capture, error) {
	return payments.Capture{}, errors.New("not used")
}

func (g *stubGateway) Refund(_ context.Context, _ string, amount int64, _ string) (payments.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return payments.RefundResult{}, g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return payments.RefundResult{RefundID: "rf-" + uuid.NewString()[:8], Status: "PENDING"}, nil
}

func (g *stubGateway) Void(_ context.Context, txn string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voids = append(g.voids, txn)
	return nil
}

type stubReferrals struct {
	calls []uuid.UUID
	err   error
}

func (r *stubReferrals) CreateCommission(_ context.Context, order models.Order) error {
	r.calls = append(r.calls, order.ID)
	return r.err
}

type fixture struct {
	client    *db.Client
	svc       *Service
	gateway   *stubGateway
	referrals *stubReferrals
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ledger, err := inventory.NewLedger(client.DB(), publisher, nil)
	require.NoError(t, err)
	gw := &stubGateway{}
	refs := &stubReferrals{}
	svc, err := NewService(Params{
		Repo:      NewRepository(client.DB()),
		Tx:        client,
		Outbox:    publisher,
		Inventory: ledger,
		Referrals: refs,
		Gateway:   gw,
	})
	require.NoError(t, err)
	return &fixture{client: client, svc: svc, gateway: gw, referrals: refs}
}

type seedLine struct {
	product   models.Product
	quantity  int
	unitCents int64
}

// seedOrder writes an order already in status with a history walk that reaches it.
func (f *fixture) seedOrder(t *testing.T, status enums.OrderStatus, txn *string, lines ...seedLine) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:          "ORD-TEST-" + uuid.NewString()[:8],
		Status:               status,
		CartID:               uuid.New(),
		PaymentMethod:        enums.PaymentMethodCard,
		PaymentTransactionID: txn,
	}
	for _, l := range lines {
		order.SubtotalCents += int64(l.quantity) * l.unitCents
	}
	order.GrandTotalCents = order.SubtotalCents

	walk := map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:    {enums.OrderStatusPending},
		enums.OrderStatusProcessing: {enums.OrderStatusProcessing},
		enums.OrderStatusCompleted:  {enums.OrderStatusProcessing, enums.OrderStatusCompleted},
	}[status]
	require.NotEmpty(t, walk, "seed status not supported")

	repo := NewRepository(f.client.DB())
	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, order))
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			OrderID:         order.ID,
			ProductID:       l.product.ID,
			Quantity:        l.quantity,
			UnitPriceCents:  l.unitCents,
			TotalPriceCents: int64(l.quantity) * l.unitCents,
			ProductSnapshot: types.ProductSnapshot{Name: l.product.Name, SKU: l.product.SKU},
		})
	}
	require.NoError(t, repo.CreateOrderItems(ctx, items))

	var prev *enums.OrderStatus
	for _, s := range walk {
		require.NoError(t, repo.AppendHistory(ctx, &models.OrderStatusHistory{OrderID: order.ID, FromStatus: prev, ToStatus: s}))
		s := s
		prev = &s
	}
	return order
}

func (f *fixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.client.DB().First(&p, "id = ?", productID).Error)
	return p.StockQuantity
}

func (f *fixture) history(t *testing.T, orderID uuid.UUID) []models.OrderStatusHistory {
	t.Helper()
	rows, err := f.svc.ListHistory(context.Background(), orderID)
	require.NoError(t, err)
	return rows
}

func steps(rows []models.OrderStatusHistory) []Step {
	out := make([]Step, len(rows))
	for i, r := range rows {
		out[i] = Step{From: r.FromStatus, To: r.ToStatus}
	}
	return out
}

func (f *fixture) eventCount(t *testing.T, orderID uuid.UUID, eventType enums.OutboxEventType) int {
	t.Helper()
	rows, err := outbox.NewRepository(f.client.DB()).ListByAggregate(context.Background(), enums.AggregateOrder, orderID)
	require.NoError(t, err)
	n := 0
	for _, r := range rows {
		if r.EventType == eventType {
			n++
		}
	}
	return n
}

func TestTransitionWalksLegalPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, nil)

	actor := uuid.New()
	notes := "picked"
	got, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusProcessing, ActorID: &actor, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, got.Status)

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCompleted})
	require.NoError(t, err)

	rows := f.history(t, order.ID)
	require.Len(t, rows, 3)
	assert.True(t, ValidWalk(steps(rows)))
	require.NotNil(t, rows[1].ActorID)
	assert.Equal(t, actor, *rows[1].ActorID)
	require.NotNil(t, rows[1].Notes)
	assert.Equal(t, "picked", *rows[1].Notes)
	assert.Equal(t, 2, f.eventCount(t, order.ID, enums.EventOrderStatusChanged))
	assert.Empty(t, f.referrals.calls, "no referral code on the order")
}

func TestIllegalTransitionLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusCompleted, nil)
	before := f.history(t, order.ID)

	for _, to := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusCancelled, enums.OrderStatusCompleted, enums.OrderStatusFailed} {
		_, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: to})
		require.Error(t, err)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatusTransition), "to=%s", to)
		details := pkgerrors.As(err).Details().(pkgerrors.TransitionDetails)
		assert.Equal(t, "completed", details.From)
		assert.Equal(t, string(to), details.To)
	}

	reloaded, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.Len(t, f.history(t, order.ID), len(before))
	assert.Zero(t, f.eventCount(t, order.ID, enums.EventOrderStatusChanged))
}

func TestTransitionValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, TransitionInput{To: enums.OrderStatusProcessing})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: uuid.New(), To: "shipped"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: uuid.New(), To: enums.OrderStatusProcessing})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCancelProcessingRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shirt := dbtest.SeedProduct(t, f.client.DB(), "SHIRT", true, 8)
	mug := dbtest.SeedProduct(t, f.client.DB(), "MUG", true, 99)
	order := f.seedOrder(t, enums.OrderStatusProcessing, nil,
		seedLine{product: shirt, quantity: 2, unitCents: 1000},
		seedLine{product: mug, quantity: 1, unitCents: 500},
	)

	got, err := f.svc.Cancel(ctx, CancelInput{OrderID: order.ID, Reason: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)

	rows := f.history(t, order.ID)
	last := rows[len(rows)-1]
	require.NotNil(t, last.FromStatus)
	assert.Equal(t, enums.OrderStatusProcessing, *last.FromStatus)
	assert.Equal(t, enums.OrderStatusCancelled, last.ToStatus)
	require.NotNil(t, last.Notes)
	assert.Equal(t, "customer request", *last.Notes)
	assert.True(t, ValidWalk(steps(rows)))

	assert.Equal(t, 10, f.stock(t, shirt.ID))
	assert.Equal(t, 100, f.stock(t, mug.ID))
	assert.Equal(t, 1, f.eventCount(t, order.ID, enums.EventOrderCancelled))
	assert.Empty(t, f.gateway.voids, "captured orders are not voided")
}

func TestCancelTwiceFailsWithoutHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, nil)

	_, err := f.svc.Cancel(ctx, CancelInput{OrderID: order.ID, Reason: "first"})
	require.NoError(t, err)
	count := len(f.history(t, order.ID))

	_, err = f.svc.Cancel(ctx, CancelInput{OrderID: order.ID, Reason: "second"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCannotCancel))
	assert.Len(t, f.history(t, order.ID), count)
}

func TestCancelRejectsCompletedOrders(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusCompleted, nil)
	_, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCannotCancel))
}

func TestCancelPendingVoidsAuthorization(t *testing.T) {
	f := newFixture(t)
	txn := "pay-auth-1"
	order := f.seedOrder(t, enums.OrderStatusPending, &txn)

	_, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, Reason: "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, []string{txn}, f.gateway.voids)
}

func TestFullRefundMovesToRefundedAndReleasesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lamp := dbtest.SeedProduct(t, f.client.DB(), "LAMP", true, 0)
	txn := "pay-captured-1"
	order := f.seedOrder(t, enums.OrderStatusCompleted, &txn, seedLine{product: lamp, quantity: 4, unitCents: 2500})
	require.EqualValues(t, 10000, order.GrandTotalCents)

	refund, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 10000, Reason: "defective"})
	require.NoError(t, err)
	assert.True(t, refund.Full)
	require.NotNil(t, refund.GatewayRefundID)
	assert.Equal(t, []int64{10000}, f.gateway.refunds)

	reloaded, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, reloaded.Status)
	assert.EqualValues(t, 10000, reloaded.RefundedAmountCents)
	assert.Equal(t, 4, f.stock(t, lamp.ID))

	rows := f.history(t, order.ID)
	last := rows[len(rows)-1]
	assert.Equal(t, enums.OrderStatusRefunded, last.ToStatus)
	require.NotNil(t, last.Notes)
	assert.Equal(t, "refunded 100.00: defective", *last.Notes)
	assert.True(t, ValidWalk(steps(rows)))

	_, err = f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 3000, Reason: "again"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCannotRefund))
	assert.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, 1, f.eventCount(t, order.ID, enums.EventOrderRefunded))
}

func TestPartialRefundsAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lamp := dbtest.SeedProduct(t, f.client.DB(), "LAMP-2", true, 0)
	order := f.seedOrder(t, enums.OrderStatusCompleted, nil, seedLine{product: lamp, quantity: 1, unitCents: 10000})
	historyBefore := len(f.history(t, order.ID))

	partial, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 3000, Reason: "scratch"})
	require.NoError(t, err)
	assert.False(t, partial.Full)
	assert.Nil(t, partial.GatewayRefundID, "no transaction id, no gateway call")
	assert.Empty(t, f.gateway.refunds)

	reloaded, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.EqualValues(t, 3000, reloaded.RefundedAmountCents)
	assert.Equal(t, 0, f.stock(t, lamp.ID), "partial refunds keep stock out")
	assert.Len(t, f.history(t, order.ID), historyBefore)

	_, err = f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 8000, Reason: "too much"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCannotRefund))

	rest, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 7000, Reason: "rest"})
	require.NoError(t, err)
	assert.True(t, rest.Full)

	reloaded, err = f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, reloaded.Status)
	assert.Equal(t, 1, f.stock(t, lamp.ID))

	refunds, err := f.svc.ListRefunds(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	assert.EqualValues(t, 3000, refunds[0].AmountCents)
	assert.Equal(t, 2, f.eventCount(t, order.ID, enums.EventOrderRefunded))
}

func TestRefundFromProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := dbtest.SeedProduct(t, f.client.DB(), "CHAIR", true, 0)
	order := f.seedOrder(t, enums.OrderStatusProcessing, nil, seedLine{product: item, quantity: 1, unitCents: 5000})

	_, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 5000, Reason: "full"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatusTransition))

	_, err = f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 1000, Reason: "late delivery"})
	require.NoError(t, err)
	reloaded, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)
	assert.EqualValues(t, 1000, reloaded.RefundedAmountCents)
}

func TestRefundRejectsPendingAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, nil)

	_, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 1, Reason: "x"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCannotRefund))

	_, err = f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 0, Reason: "x"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 10})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestRefundGatewayFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := dbtest.SeedProduct(t, f.client.DB(), "DESK", true, 0)
	txn := "pay-9"
	order := f.seedOrder(t, enums.OrderStatusCompleted, &txn, seedLine{product: item, quantity: 1, unitCents: 4000})
	f.gateway.refundErr = errors.New("gateway timeout")

	_, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 4000, Reason: "broken"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	reloaded, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.Zero(t, reloaded.RefundedAmountCents)
	refunds, err := f.svc.ListRefunds(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestTransitionToRefundedRequiresRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lamp := dbtest.SeedProduct(t, f.client.DB(), "LAMP-3", true, 10)
	order := f.seedOrder(t, enums.OrderStatusCompleted, nil, seedLine{product: lamp, quantity: 2, unitCents: 1500})
	before := f.history(t, order.ID)

	_, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusRefunded})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	reloaded, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.Zero(t, reloaded.RefundedAmountCents)
	assert.Equal(t, 10, f.stock(t, lamp.ID), "stock stays out without a recorded refund")
	assert.Len(t, f.history(t, order.ID), len(before))
	assert.Zero(t, f.eventCount(t, order.ID, enums.EventOrderStatusChanged))
}

func TestConcurrentFullRefundsHitGatewayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := dbtest.SeedProduct(t, f.client.DB(), "SOFA", true, 0)
	txn := "pay-race"
	order := f.seedOrder(t, enums.OrderStatusCompleted, &txn, seedLine{product: item, quantity: 1, unitCents: 9000})

	const racers = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refund(ctx, RefundInput{OrderID: order.ID, AmountCents: 9000, Reason: "duplicate charge"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case pkgerrors.HasCode(err, pkgerrors.CodeCannotRefund):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, rejected)
	assert.Equal(t, []int64{9000}, f.gateway.refunds)
	refunds, err := f.svc.ListRefunds(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

func TestCompletingReferredOrderRequestsCommission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusProcessing, nil)
	code := uuid.New()
	require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", order.ID).Update("referral_code_id", code).Error)
	f.referrals.err = errors.New("referrals unavailable")

	got, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCompleted})
	require.NoError(t, err, "commission failures are not fatal")
	assert.Equal(t, enums.OrderStatusCompleted, got.Status)
	assert.Equal(t, []uuid.UUID{order.ID}, f.referrals.calls)
}

func TestConcurrentTransitionsFromSameStateOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.OrderStatusPending, nil)

	const racers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusProcessing})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatusTransition):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, rejected)
	rows := f.history(t, order.ID)
	assert.Len(t, rows, 2)
	assert.True(t, ValidWalk(steps(rows)))
}

func TestListHistoryFollowsAppendOrderNotClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.client.DB())
	order := &models.Order{
		OrderNumber:   "ORD-TEST-CLOCK",
		Status:        enums.OrderStatusCompleted,
		CartID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodCard,
	}
	require.NoError(t, repo.CreateOrder(ctx, order))

	// Later rows carry equal or earlier timestamps than the ones before them.
	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pending, processing := enums.OrderStatusPending, enums.OrderStatusProcessing
	walk := []models.OrderStatusHistory{
		{OrderID: order.ID, ToStatus: enums.OrderStatusPending, CreatedAt: stamp},
		{OrderID: order.ID, FromStatus: &pending, ToStatus: enums.OrderStatusProcessing, CreatedAt: stamp},
		{OrderID: order.ID, FromStatus: &processing, ToStatus: enums.OrderStatusCompleted, CreatedAt: stamp.Add(-time.Second)},
	}
	for i := range walk {
		require.NoError(t, repo.AppendHistory(ctx, &walk[i]))
		assert.Equal(t, i+1, walk[i].Sequence)
	}

	rows := f.history(t, order.ID)
	require.Len(t, rows, 3)
	assert.True(t, ValidWalk(steps(rows)))
	assert.Equal(t, enums.OrderStatusCompleted, rows[2].ToStatus)
}

func TestListPendingBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.seedOrder(t, enums.OrderStatusPending, nil)
	f.seedOrder(t, enums.OrderStatusProcessing, nil)

	now := time.Now().UTC()
	require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", now.Add(-48*time.Hour)).Error)

	rows, err := f.svc.ListPendingBefore(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)
}
