// Package ratelimittest provides a non-blocking Sleeper for tests.
package ratelimittest

import (
	"context"
	"sync"
	"time"

	"github.com/maltedev/search-price-tracker/internal/ratelimit"
)

var _ ratelimit.Sleeper = (*RecordingSleeper)(nil)

// RecordingSleeper records requested pauses without blocking. When Err is
// set, the FailOn-th call returns it.
type RecordingSleeper struct {
	mu     sync.Mutex
	Slept  []time.Duration
	FailOn int
	Err    error
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.Slept = append(r.Slept, d)
	if r.Err != nil && len(r.Slept) == r.FailOn {
		return r.Err
	}
	return nil
}

func (r *RecordingSleeper) Count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.Slept {
		if s == d {
			n++
		}
	}
	return n
}

func (r *RecordingSleeper) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total time.Duration
	for _, s := range r.Slept {
		total += s
	}
	return total
}
