package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultCourtesyDelay = 20 * time.Second
	DefaultShortDelay    = 15 * time.Second
	DefaultLongDelay     = time.Hour
	DefaultThreshold     = 10
)

// Sleeper blocks for a duration or until the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitKind tells the crawl loop which pause a backoff decision maps to.
type WaitKind int

const (
	WaitShort WaitKind = iota
	WaitLong
)

func (k WaitKind) String() string {
	switch k {
	case WaitShort:
		return "short"
	case WaitLong:
		return "long"
	default:
		return "unknown"
	}
}

// Backoff is the escalating policy applied to rate-limited responses.
// Below Threshold consecutive hits the crawler pauses ShortDelay, at or
// above it the crawler rests LongDelay.
type Backoff struct {
	ShortDelay time.Duration
	LongDelay  time.Duration
	Threshold  int
}

func NewBackoff(shortDelay, longDelay time.Duration, threshold int) Backoff {
	if shortDelay <= 0 {
		shortDelay = DefaultShortDelay
	}
	if longDelay <= 0 {
		longDelay = DefaultLongDelay
	}
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return Backoff{
		ShortDelay: shortDelay,
		LongDelay:  longDelay,
		Threshold:  threshold,
	}
}

func DefaultBackoff() Backoff {
	return NewBackoff(DefaultShortDelay, DefaultLongDelay, DefaultThreshold)
}

// Next returns the pause for the given count of consecutive rate-limited responses,
// counting the one just received.
func (b Backoff) Next(consecutive int) (WaitKind, time.Duration) {
	if consecutive >= b.Threshold {
		return WaitLong, b.LongDelay
	}
	return WaitShort, b.ShortDelay
}
