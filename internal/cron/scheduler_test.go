package cron

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow/pkg/logger"
	"github.com/angelmondragon/orderflow/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline time.Time
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(ctx context.Context) error {
	j.runs++
	j.deadline, _ = ctx.Deadline()
	return j.err
}

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestRunOnceRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &testJob{name: "outbox-retention"}
	bad := &testJob{name: "pending-order-expiry", err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	lock := &fakeLock{}
	s, err := NewScheduler(SchedulerParams{
		Logger:  logger.Nop(),
		Lock:    lock,
		Metrics: metrics.NewCronJobMetrics(reg),
		Jobs:    []Job{bad, ok},
	})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)
	assert.Equal(t, 1, lock.releases)
	assert.Equal(t, defaultInterval, s.interval)

	n, err := testutil.GatherAndCount(reg, "orderflow_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "pending-order-expiry"}
	reg := prometheus.NewRegistry()
	s, err := NewScheduler(SchedulerParams{
		Logger:  logger.Nop(),
		Lock:    &fakeLock{held: true},
		Metrics: metrics.NewCronJobMetrics(reg),
		Jobs:    []Job{job},
	})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	expected := `
# HELP orderflow_cron_cycles_skipped_total Cycles skipped because another instance held the lock.
# TYPE orderflow_cron_cycles_skipped_total counter
orderflow_cron_cycles_skipped_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "orderflow_cron_cycles_skipped_total"))
}

func TestRunOnceBoundsEachJob(t *testing.T) {
	job := &testJob{name: "slow"}
	s, err := NewScheduler(SchedulerParams{
		Logger:     logger.Nop(),
		Lock:       &fakeLock{},
		JobTimeout: time.Second,
		Jobs:       []Job{job},
	})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	require.False(t, job.deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Second), job.deadline, time.Second)
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(SchedulerParams{Logger: logger.Nop()})
	assert.Error(t, err)

	_, err = NewScheduler(SchedulerParams{
		Logger: logger.Nop(),
		Lock:   &fakeLock{},
		Jobs:   []Job{&testJob{name: "a"}, &testJob{name: "a"}},
	})
	assert.ErrorContains(t, err, "duplicate job")
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{}
	s, err := NewScheduler(SchedulerParams{Logger: logger.Nop(), Lock: &fakeLock{}, Interval: time.Hour, Jobs: []Job{job}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
