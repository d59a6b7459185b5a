package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/config"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	"github.com/angelmondragon/orderflow/pkg/logger"
	"github.com/angelmondragon/orderflow/pkg/metrics"
	"github.com/angelmondragon/orderflow/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
)

var errUnroutable = errors.New("no publisher for topic")

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams wires the relay. Topics defaults to the Pub/Sub client's publishers.
type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   eventResolver
	Topics     topicLookup
	Metrics    *metrics.OutboxMetrics
}

// Relay moves committed outbox rows onto Pub/Sub. A row is either published,
// left for another attempt, or copied to outbox_dlq and pinned at the cap.
type Relay struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	dlq         dlqRepository
	registry    eventResolver
	topics      topicLookup
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	topics := p.Topics
	if topics == nil {
		topics = pubSubTopics(p.PubSub)
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		repo:        p.Repository,
		dlq:         p.DLQ,
		registry:    p.Registry,
		topics:      topics,
		metrics:     p.Metrics,
		batchSize:   p.Outbox.BatchSize,
		maxAttempts: p.Outbox.MaxAttempts,
		poll:        time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPollInterval
	}
	return r, nil
}

// Run drains batches until ctx is done. An empty drain sleeps for the poll
// interval; a failed drain, or one where every row was left for retry, backs off.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := newBackoff(r.poll, maxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary, err := r.drain(ctx)
		var delay time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			delay = wait.fail()
		case summary.total() == 0:
			delay = wait.idle()
		case summary.published == 0 && summary.retried > 0:
			// Nothing got through; the retried rows are due again on the next fetch.
			r.logg.Warn(r.logg.WithFields(ctx, summary.fields()), "outbox batch undelivered, backing off")
			delay = wait.fail()
		case summary.retried > 0:
			r.logg.Debug(r.logg.WithFields(ctx, summary.fields()), "outbox batch partially drained")
			delay = wait.idle()
		default:
			r.logg.Debug(r.logg.WithFields(ctx, summary.fields()), "outbox batch drained")
			wait.reset()
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type drainSummary struct {
	published    int
	retried      int
	deadLettered int
}

func (s drainSummary) total() int {
	return s.published + s.retried + s.deadLettered
}

func (s drainSummary) fields() map[string]any {
	return map[string]any{
		"published":     s.published,
		"retried":       s.retried,
		"dead_lettered": s.deadLettered,
	}
}

// drain locks one batch and settles every row in it within the same transaction.
func (r *Relay) drain(ctx context.Context) (drainSummary, error) {
	var summary drainSummary
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		summary = drainSummary{}
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			result, err := r.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			switch result {
			case outcomePublished:
				summary.published++
			case outcomeRetry:
				summary.retried++
			case outcomeDeadLettered:
				summary.deadLettered++
			}
		}
		return nil
	})
	return summary, err
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	ctx = r.eventContext(ctx, event)

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"topic":    resolved.Descriptor.Topic,
		"event_id": resolved.Envelope.EventID,
	})

	err = r.publish(ctx, event, resolved)
	if err == nil {
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return 0, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.IncPublished(string(event.EventType))
		r.logg.Info(ctx, "outbox event published")
		return outcomePublished, nil
	}

	if errors.Is(err, errUnroutable) {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUnroutable, err)
	}
	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	if event.AttemptCount+1 >= r.maxAttempts {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         err.Error(),
	}), "outbox publish failed, will retry")
	r.metrics.IncFailed(string(event.EventType))
	if err := r.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return 0, fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) (outcome, error) {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return 0, fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return 0, fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	r.metrics.IncDLQ(string(reason))
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        msg,
	}), "outbox event dead-lettered")
	return outcomeDeadLettered, nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := r.topics(resolved.Descriptor.Topic)
	if topic == nil {
		return fmt.Errorf("%w %q", errUnroutable, resolved.Descriptor.Topic)
	}

	occurredAt := resolved.Envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.CreatedAt
	}
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    occurredAt.UTC().Format(time.RFC3339Nano),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := topic.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %q", resolved.Descriptor.Topic))
	}
	if _, err := result.Get(ctx); err != nil {
		return classifyPublishError(err)
	}
	return nil
}

func (r *Relay) eventContext(ctx context.Context, event models.OutboxEvent) context.Context {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
	})
	if event.AggregateType == enums.AggregateOrder {
		return r.logg.WithOrderID(ctx, event.AggregateID.String())
	}
	return r.logg.WithField(ctx, "aggregate_id", event.AggregateID.String())
}
