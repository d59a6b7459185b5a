package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultRetentionBatch  = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Retention  time.Duration
	BatchSize  int
}

// OutboxRetentionJob prunes delivered outbox rows older than the retention
// window. Each batch commits on its own so a large backlog never holds one
// long delete transaction.
type OutboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	j := &OutboxRetentionJob{
		logg:      p.Logger,
		db:        p.DB,
		repo:      p.Repository,
		retention: p.Retention,
		batch:     p.BatchSize,
		now:       time.Now,
	}
	if j.retention <= 0 {
		j.retention = defaultOutboxRetention
	}
	if j.batch <= 0 {
		j.batch = defaultRetentionBatch
	}
	return j, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"retention": j.retention.String(),
	})

	var total int64
	for {
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "rows_deleted", total), "outbox retention interrupted")
			return err
		}
		total += n
		if n < int64(j.batch) {
			break
		}
		if err := ctx.Err(); err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "rows_deleted", total), "outbox retention interrupted")
			return err
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", total), "outbox retention complete")
	return nil
}
