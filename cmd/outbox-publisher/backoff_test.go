package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesToCapAndResetsOnIdle(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 300*time.Millisecond)

	assert.GreaterOrEqual(t, b.fail(), 200*time.Millisecond)
	b.fail()
	d := b.fail()
	assert.GreaterOrEqual(t, d, 300*time.Millisecond)
	assert.Less(t, d, 300*time.Millisecond+jitterWindow)

	idle := b.idle()
	assert.GreaterOrEqual(t, idle, 100*time.Millisecond)
	assert.Less(t, idle, 100*time.Millisecond+jitterWindow)
	assert.Equal(t, 100*time.Millisecond, b.current)
}
