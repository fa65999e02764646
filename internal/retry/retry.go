// Package retry implements the retry policy applied around every API
// request: idempotency-aware failure classification and capped
// exponential backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/paperledge/papi/internal/constants"
	"github.com/paperledge/papi/pkg/papi"
)

// Attempt describes one failed attempt, reported to hooks before the
// policy sleeps and tries again.
type Attempt struct {
	// Number is the 1-based attempt that just failed.
	Number int
	Method string
	Path   string
	Err    error
	// Delay is the backoff the policy will sleep before the next attempt.
	Delay time.Duration
}

// Hook observes retry attempts. Hooks are advisory: a panicking hook is
// swallowed and never aborts the retry loop.
type Hook func(Attempt)

// Policy decides which failures are retried and how long to back off.
type Policy struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	statuses     map[int]bool
	methods      map[string]bool
	hooks        []Hook
}

// defaultStatuses is the retryable status allow-list.
var defaultStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// defaultMethods are the methods safe to replay on an ambiguous failure.
// POST and PATCH are absent: replaying them can duplicate a side effect.
var defaultMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPut,
	http.MethodDelete,
}

// NewPolicy builds a policy from client configuration. A nil config uses
// the defaults; a disabled config performs no retries.
func NewPolicy(config *papi.RetryConfig, hooks ...Hook) (*Policy, error) {
	policy := &Policy{
		maxRetries:   constants.DefaultMaxRetries,
		initialDelay: constants.DefaultInitialRetryDelay,
		maxDelay:     constants.DefaultMaxRetryDelay,
		multiplier:   constants.DefaultBackoffMultiplier,
		statuses:     toSet(defaultStatuses),
		methods:      toStringSet(defaultMethods),
		hooks:        hooks,
	}

	if config == nil {
		return policy, nil
	}

	if !config.Enabled {
		policy.maxRetries = 0

		return policy, nil
	}

	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: MaxRetries must not be negative", papi.ErrInvalidRetryConfig)
	}

	if config.InitialDelay < 0 || config.MaxDelay < 0 {
		return nil, fmt.Errorf("%w: delays must not be negative", papi.ErrInvalidRetryConfig)
	}

	if config.BackoffMultiplier != 0 && config.BackoffMultiplier < 1 {
		return nil, fmt.Errorf("%w: BackoffMultiplier must be at least 1", papi.ErrInvalidRetryConfig)
	}

	if config.MaxRetries > 0 {
		policy.maxRetries = config.MaxRetries
	}

	if config.InitialDelay > 0 {
		policy.initialDelay = config.InitialDelay
	}

	if config.MaxDelay > 0 {
		policy.maxDelay = config.MaxDelay
	}

	if config.BackoffMultiplier > 0 {
		policy.multiplier = config.BackoffMultiplier
	}

	if len(config.RetryableStatuses) > 0 {
		policy.statuses = toSet(config.RetryableStatuses)
	}

	if len(config.RetryableMethods) > 0 {
		policy.methods = toStringSet(config.RetryableMethods)
	}

	if policy.maxDelay < policy.initialDelay {
		return nil, fmt.Errorf("%w: MaxDelay is below InitialDelay", papi.ErrInvalidRetryConfig)
	}

	return policy, nil
}

// Execute runs op, retrying failures the policy classifies as retryable
// for the given method. The final attempt's error is returned unwrapped.
func (p *Policy) Execute(ctx context.Context, method, path string, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		if attempt >= p.maxRetries || !p.Retryable(method, err) {
			return err
		}

		delay := p.backoff(attempt, err)

		p.notify(Attempt{
			Number: attempt + 1,
			Method: method,
			Path:   path,
			Err:    err,
			Delay:  delay,
		})

		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// Retryable classifies a failure. Transport failures and rate limits are
// always retryable; an allow-listed status retries only for methods that
// are safe to replay.
func (p *Policy) Retryable(method string, err error) bool {
	if papi.IsRateLimit(err) || papi.IsNetwork(err) {
		return true
	}

	status, ok := papi.StatusOf(err)
	if !ok {
		return false
	}

	return p.statuses[status] && p.methods[method]
}

// backoff computes the delay before the next attempt: exponential with
// cap and uniform jitter, overridden by a server-advised Retry-After.
func (p *Policy) backoff(attempt int, err error) time.Duration {
	var rateLimitErr *papi.RateLimitError
	if errors.As(err, &rateLimitErr) && rateLimitErr.RetryAfter > 0 {
		return rateLimitErr.RetryAfter
	}

	base := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt))
	if base > float64(p.maxDelay) {
		base = float64(p.maxDelay)
	}

	jitter := 1 + (rand.Float64()*2-1)*constants.RetryJitterFraction

	return time.Duration(base * jitter)
}

func (p *Policy) notify(attempt Attempt) {
	for _, hook := range p.hooks {
		func() {
			defer func() { _ = recover() }()

			hook(attempt)
		}()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toSet(values []int) map[int]bool {
	set := make(map[int]bool, len(values))
	for _, v := range values {
		set[v] = true
	}

	return set
}

func toStringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}

	return set
}
