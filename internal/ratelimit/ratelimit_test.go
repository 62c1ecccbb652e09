package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffNext(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		consecutive int
		kind        WaitKind
		delay       time.Duration
	}{
		{1, WaitShort, 15 * time.Second},
		{5, WaitShort, 15 * time.Second},
		{9, WaitShort, 15 * time.Second},
		{10, WaitLong, time.Hour},
		{11, WaitLong, time.Hour},
	}

	for _, tt := range tests {
		kind, delay := b.Next(tt.consecutive)
		assert.Equal(t, tt.kind, kind, "consecutive=%d", tt.consecutive)
		assert.Equal(t, tt.delay, delay, "consecutive=%d", tt.consecutive)
	}
}

func TestNewBackoffDefaults(t *testing.T) {
	b := NewBackoff(0, -1, 0)
	assert.Equal(t, DefaultShortDelay, b.ShortDelay)
	assert.Equal(t, DefaultLongDelay, b.LongDelay)
	assert.Equal(t, DefaultThreshold, b.Threshold)

	custom := NewBackoff(time.Second, time.Minute, 3)
	kind, delay := custom.Next(3)
	assert.Equal(t, WaitLong, kind)
	assert.Equal(t, time.Minute, delay)
}

func TestWaitKindString(t *testing.T) {
	assert.Equal(t, "short", WaitShort.String())
	assert.Equal(t, "long", WaitLong.String())
	assert.Equal(t, "unknown", WaitKind(42).String())
}

func TestTimerSleeper(t *testing.T) {
	var s TimerSleeper

	t.Run("sleeps for the duration", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, s.Sleep(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := s.Sleep(ctx, time.Hour)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("zero duration", func(t *testing.T) {
		assert.NoError(t, s.Sleep(context.Background(), 0))
	})
}
