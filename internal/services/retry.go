package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/shared"
)

// RetryPolicy retries calls failing with [shared.ErrTransientFetch] using jittered exponential backoff.
type RetryPolicy struct {
	Attempts int           // total attempts, including the first
	Base     time.Duration // delay before the first retry
	Max      time.Duration // cap on any single delay
}

// DefaultRetryPolicy is used when none is configured.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 500 * time.Millisecond, Max: 8 * time.Second}

// Do runs fn until it succeeds, fails with a non-transient error, attempts run out, or ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for i := range attempts {
		if err = fn(ctx); err == nil || !errors.Is(err, shared.ErrTransientFetch) {
			return err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(p.delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	d := p.Base << attempt
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d/2 + rand.N(d/2+1)
}
