// Package ratelimit implements client-side admission control: a token
// bucket with strict FIFO granting so a burst of goroutines cannot starve
// earlier waiters.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/paperledge/papi/internal/constants"
	"github.com/paperledge/papi/pkg/papi"
)

// Limiter gates outgoing requests.
type Limiter interface {
	// Acquire blocks until a request token is available, the context is
	// done, or the limiter is reset.
	Acquire(ctx context.Context) error
	// Reset refills the bucket and rejects every queued waiter.
	Reset()
}

// NewFromConfig builds a limiter from client configuration. A nil config
// uses the defaults; a disabled config yields a no-op limiter.
func NewFromConfig(config *papi.RateLimitConfig) Limiter {
	if config == nil {
		return New(constants.DefaultRateLimitCapacity, constants.DefaultRateLimitWindow)
	}

	if !config.Enabled {
		return NewDisabled()
	}

	capacity := config.RequestsPerWindow
	if capacity <= 0 {
		capacity = constants.DefaultRateLimitCapacity
	}

	window := config.Window
	if window <= 0 {
		window = constants.DefaultRateLimitWindow
	}

	return New(capacity, window)
}

// NewDisabled returns a limiter that admits everything immediately.
func NewDisabled() Limiter {
	return noopLimiter{}
}

type noopLimiter struct{}

func (noopLimiter) Acquire(ctx context.Context) error {
	return ctx.Err()
}

func (noopLimiter) Reset() {}

// waiter is one queued Acquire call. The grant channel is buffered so
// the drain loop never blocks handing out a grant.
type waiter struct {
	grant chan error
}

// TokenBucket is a windowed token bucket with FIFO granting. Capacity
// tokens refill continuously over the window; tokens accrue lazily on
// access rather than on a background ticker.
type TokenBucket struct {
	capacity float64
	window   time.Duration

	mu       sync.Mutex
	tokens   float64
	last     time.Time
	waiters  []*waiter
	draining bool

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a full bucket admitting capacity requests per window.
func New(capacity int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity: float64(capacity),
		window:   window,
		tokens:   float64(capacity),
		last:     time.Now(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Acquire implements Limiter.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.refill()

	// Fast path only when nobody is queued, otherwise a late arrival
	// would jump the FIFO line.
	if len(b.waiters) == 0 && b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()

		return nil
	}

	w := &waiter{grant: make(chan error, 1)}
	b.waiters = append(b.waiters, w)

	if !b.draining {
		b.draining = true

		go b.drain()
	}
	b.mu.Unlock()

	select {
	case err := <-w.grant:
		return err
	case <-ctx.Done():
		b.remove(w)

		// The drain loop may have granted while we were being removed;
		// prefer the grant so the consumed token is not lost.
		select {
		case err := <-w.grant:
			return err
		default:
			return ctx.Err()
		}
	}
}

// Reset implements Limiter.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.capacity
	b.last = b.now()

	for _, w := range b.waiters {
		w.grant <- papi.ErrLimiterReset
	}

	b.waiters = nil
}

// refill accrues tokens for the time elapsed since the last accrual.
// Callers must hold the lock.
func (b *TokenBucket) refill() {
	now := b.now()

	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed.Seconds() * (b.capacity / b.window.Seconds())
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	b.last = now
}

// drain grants tokens to queued waiters in arrival order, sleeping until
// the next token accrues. It exits when the queue empties.
func (b *TokenBucket) drain() {
	for {
		b.mu.Lock()
		b.refill()

		for len(b.waiters) > 0 && b.tokens >= 1 {
			b.tokens--

			w := b.waiters[0]
			b.waiters = b.waiters[1:]
			w.grant <- nil
		}

		if len(b.waiters) == 0 {
			b.draining = false
			b.mu.Unlock()

			return
		}

		// Time until one whole token has accrued.
		deficit := 1 - b.tokens
		wait := time.Duration(deficit * float64(b.window) / b.capacity)
		b.mu.Unlock()

		b.sleep(wait)
	}
}

// remove drops a waiter that gave up before being granted.
func (b *TokenBucket) remove(target *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, w := range b.waiters {
		if w == target {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)

			return
		}
	}
}
