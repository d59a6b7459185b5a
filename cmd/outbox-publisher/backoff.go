package main

import (
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// backoff doubles the idle delay after each failed drain, up to max.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, current: base}
}

func (b *backoff) fail() time.Duration {
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return jitter(b.current)
}

func (b *backoff) idle() time.Duration {
	b.reset()
	return jitter(b.base)
}

func (b *backoff) reset() {
	b.current = b.base
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
