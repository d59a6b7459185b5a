package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orderflow"

// CheckoutMetrics tracks order creation outcomes.
type CheckoutMetrics struct {
	created      *prometheus.CounterVec
	failed       *prometheus.CounterVec
	duration     prometheus.Histogram
	compensation *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders committed by checkout, by initial status.",
	}, []string{"status"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_failures_total",
		Help:      "Checkout attempts that aborted, by error code.",
	}, []string{"code"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Wall time of checkout attempts.",
		Buckets:   prometheus.DefBuckets,
	})
	compensation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_compensations_total",
		Help:      "Payment refunds/voids issued after a failed checkout, by action and result.",
	}, []string{"action", "result"})
	reg.MustRegister(created, failed, duration, compensation)
	return &CheckoutMetrics{created: created, failed: failed, duration: duration, compensation: compensation}
}

func (m *CheckoutMetrics) IncCreated(status string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *CheckoutMetrics) IncFailed(code string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *CheckoutMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *CheckoutMetrics) IncCompensation(action string, ok bool) {
	if m == nil || m.compensation == nil {
		return
	}
	m.compensation.WithLabelValues(normalizeLabel(action), resultLabel(ok)).Inc()
}

// InventoryMetrics counts ledger mutations.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	releases     prometheus.Counter
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_reservations_total",
		Help:      "Reservation attempts by result (reserved, untracked, insufficient).",
	}, []string{"result"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_releases_total",
		Help:      "Reservations returned to stock.",
	})
	reg.MustRegister(reservations, releases)
	return &InventoryMetrics{reservations: reservations, releases: releases}
}

func (m *InventoryMetrics) IncReservation(result string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *InventoryMetrics) IncRelease() {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.Inc()
}

// OrderMetrics counts state machine activity.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	refunds     *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Committed order status transitions.",
	}, []string{"from", "to"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_refunds_total",
		Help:      "Recorded refunds by kind (partial, full).",
	}, []string{"kind"})
	reg.MustRegister(transitions, refunds)
	return &OrderMetrics{transitions: transitions, refunds: refunds}
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) IncRefund(full bool) {
	if m == nil || m.refunds == nil {
		return
	}
	kind := "partial"
	if full {
		kind = "full"
	}
	m.refunds.WithLabelValues(kind).Inc()
}

// OutboxMetrics tracks publisher throughput.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dlq       *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_published_total",
		Help:      "Outbox rows delivered to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_failures_total",
		Help:      "Retryable publish failures.",
	}, []string{"event_type"})
	dlq := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_dlq_total",
		Help:      "Outbox rows parked in the DLQ, by reason.",
	}, []string{"reason"})
	reg.MustRegister(published, failed, dlq)
	return &OutboxMetrics{published: published, failed: failed, dlq: dlq}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDLQ(reason string) {
	if m == nil || m.dlq == nil {
		return
	}
	m.dlq.WithLabelValues(normalizeLabel(reason)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
