package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/orderflow/pkg/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

func utcNow() time.Time { return time.Now().UTC() }

// queryLogger routes GORM's statement log through the service logger. Only
// failed statements and those slower than the threshold are reported, at warn
// level since callers log the error itself. A missing record is not a failure.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryLogger) Info(ctx context.Context, msg string, _ ...any) {
	l.logg.Debug(ctx, msg)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, _ ...any) {
	l.logg.Warn(ctx, msg)
}

func (l *queryLogger) Error(ctx context.Context, msg string, _ ...any) {
	l.logg.Warn(ctx, msg)
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	if !failed && elapsed < l.slow {
		return
	}

	sql, rows := fc()
	fields := map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	}
	msg := "slow query"
	if failed {
		fields["error"] = err.Error()
		msg = "query failed"
	}
	l.logg.Warn(l.logg.WithFields(ctx, fields), msg)
}
