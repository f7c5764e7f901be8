// Package resilience guards upstream endpoints with per-endpoint circuit
// breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/WessleyAI/carfeed/pkg/fn"
)

// State is a breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned without calling upstream while a breaker is
// open or its half-open probes are all in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker. Zero fields take DefaultBreakerOpts.
type BreakerOpts struct {
	Name string
	// FailThreshold consecutive failures open the breaker.
	FailThreshold int
	// Timeout is the open period before probes are let through.
	Timeout time.Duration
	// HalfOpenMax bounds concurrent probes.
	HalfOpenMax int
	// IsFailure filters which errors count. Nil counts all of them; a missing
	// document is not an upstream outage.
	IsFailure func(error) bool
	// OnStateChange runs outside the lock.
	OnStateChange func(name string, from, to State)
}

var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker is safe for concurrent use.
type Breaker struct {
	opts BreakerOpts
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	openedAt time.Time
}

func NewBreaker(opts BreakerOpts) *Breaker {
	d := DefaultBreakerOpts
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = d.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = d.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expire()
	return b.state
}

// expire moves an open breaker to half-open once Timeout has passed.
// Caller holds mu.
func (b *Breaker) expire() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
}

// set changes state under mu and returns the previous one.
func (b *Breaker) set(s State) State {
	prev := b.state
	b.state = s
	b.failures = 0
	b.probes = 0
	if s == StateOpen {
		b.openedAt = b.now()
	}
	return prev
}

func (b *Breaker) changed(from, to State) {
	if from != to && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(b.opts.Name, from, to)
	}
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	from := b.state
	b.expire()
	to := b.state
	var err error
	switch {
	case to == StateOpen:
		err = ErrCircuitOpen
	case to == StateHalfOpen && b.probes >= b.opts.HalfOpenMax:
		err = ErrCircuitOpen
	case to == StateHalfOpen:
		b.probes++
	}
	b.mu.Unlock()
	b.changed(from, to)
	return err
}

func (b *Breaker) release(err error) {
	counted := err != nil && (b.opts.IsFailure == nil || b.opts.IsFailure(err))

	b.mu.Lock()
	from := b.state
	switch {
	case counted && (b.state == StateHalfOpen || b.failures+1 >= b.opts.FailThreshold):
		b.set(StateOpen)
	case counted:
		b.failures++
	case b.state == StateHalfOpen:
		b.set(StateClosed)
	default:
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()
	b.changed(from, to)
}

// CallResult runs f when b admits it and records the outcome.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.acquire(); err != nil {
		return fn.Err[T](err)
	}
	r := f(ctx)
	b.release(r.Error())
	return r
}
