package order

import (
	"context"
	"time"
)

// RetryPolicy bounds a polling or retry loop. The same policy shape serves
// the fill-wait, position-confirm and protective-order sites instead of
// duplicated inline loops.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Backoff     float64 // interval multiplier between attempts; <=1 means fixed
}

// Do runs fn up to MaxAttempts times, sleeping Interval (scaled by Backoff)
// between attempts. It returns nil on the first success, the last error
// otherwise, and stops early when ctx is cancelled.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	interval := p.Interval
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			if p.Backoff > 1 {
				interval = time.Duration(float64(interval) * p.Backoff)
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Poll runs check at Interval up to MaxAttempts times until it reports done.
// A false return means the attempts were exhausted without completion;
// callers distinguish that timeout from an error reported by check.
func (p RetryPolicy) Poll(ctx context.Context, check func() (bool, error)) (bool, error) {
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(p.Interval):
			}
		}
		done, err := check()
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
	}
	return false, nil
}
