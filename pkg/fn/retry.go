package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Jitter scales each wait by a random factor in [0.5, 1.5).
	Jitter bool
	// Retryable reports whether a failure is worth another attempt.
	// Nil retries every failure.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
}

type backoff struct {
	next   time.Duration
	max    time.Duration
	jitter bool
}

// step returns the wait before the next attempt and doubles the base.
func (b *backoff) step() time.Duration {
	d := b.next
	if b.jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	b.next *= 2
	if b.max > 0 {
		d = min(d, b.max)
		b.next = min(b.next, b.max)
	}
	return d
}

// Retry calls f until it succeeds, MaxAttempts is spent, Retryable rejects
// the failure, or ctx ends. The last failure is returned.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	b := backoff{next: opts.InitialWait, max: opts.MaxWait, jitter: opts.Jitter}

	for attempt := 1; ; attempt++ {
		r := f(ctx)
		if r.err == nil || attempt >= attempts {
			return r
		}
		if opts.Retryable != nil && !opts.Retryable(r.err) {
			return r
		}
		if err := ctx.Err(); err != nil {
			return Err[T](err)
		}
		wait := b.step()
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, r.err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
	}
}
