package retry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperledge/papi/internal/retry"
	"github.com/paperledge/papi/pkg/papi"
)

// fastConfig keeps tests quick without changing classification.
func fastConfig() *papi.RetryConfig {
	return &papi.RetryConfig{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
	}
}

func TestPolicyRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(fastConfig())
	require.NoError(t, err)

	attempts := 0

	err = policy.Execute(context.Background(), http.MethodGet, "/v2/invoices", func() error {
		attempts++
		if attempts < 3 {
			return papi.NewAPIError(http.StatusServiceUnavailable, "", nil)
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicyExhaustsBudget(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(fastConfig())
	require.NoError(t, err)

	attempts := 0
	failure := papi.NewAPIError(http.StatusBadGateway, "", nil)

	err = policy.Execute(context.Background(), http.MethodGet, "/v2/invoices", func() error {
		attempts++

		return failure
	})
	require.Error(t, err)
	assert.Equal(t, failure, err)
	// Initial attempt plus three retries.
	assert.Equal(t, 4, attempts)
}

func TestPolicyClassification(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		method    string
		err       error
		retryable bool
	}{
		{
			name:      "network error always retries",
			method:    http.MethodPost,
			err:       &papi.NetworkError{Op: "POST", URL: "/v2/invoices", Err: errors.New("connection refused")},
			retryable: true,
		},
		{
			name:      "timeout always retries",
			method:    http.MethodPost,
			err:       &papi.TimeoutError{NetworkError: papi.NetworkError{Op: "POST", URL: "/v2/invoices", Err: context.DeadlineExceeded}},
			retryable: true,
		},
		{
			name:      "rate limit retries regardless of method",
			method:    http.MethodPost,
			err:       papi.NewAPIError(http.StatusTooManyRequests, "", nil),
			retryable: true,
		},
		{
			name:      "GET with 503 retries",
			method:    http.MethodGet,
			err:       papi.NewAPIError(http.StatusServiceUnavailable, "", nil),
			retryable: true,
		},
		{
			name:      "DELETE with 500 retries",
			method:    http.MethodDelete,
			err:       papi.NewAPIError(http.StatusInternalServerError, "", nil),
			retryable: true,
		},
		{
			name:      "POST with 500 does not retry",
			method:    http.MethodPost,
			err:       papi.NewAPIError(http.StatusInternalServerError, "", nil),
			retryable: false,
		},
		{
			name:      "PATCH with 502 does not retry",
			method:    http.MethodPatch,
			err:       papi.NewAPIError(http.StatusBadGateway, "", nil),
			retryable: false,
		},
		{
			name:      "GET with 404 does not retry",
			method:    http.MethodGet,
			err:       papi.NewAPIError(http.StatusNotFound, "", nil),
			retryable: false,
		},
		{
			name:      "GET with 422 does not retry",
			method:    http.MethodGet,
			err:       papi.NewAPIError(http.StatusUnprocessableEntity, "", nil),
			retryable: false,
		},
		{
			name:      "plain error does not retry",
			method:    http.MethodGet,
			err:       errors.New("unexpected"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.retryable, policy.Retryable(tt.method, tt.err))
		})
	}
}

func TestPolicyNonIdempotentNotRetried(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(fastConfig())
	require.NoError(t, err)

	attempts := 0

	err = policy.Execute(context.Background(), http.MethodPost, "/v2/invoices", func() error {
		attempts++

		return papi.NewAPIError(http.StatusInternalServerError, "", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	config := &papi.RetryConfig{
		Enabled:           true,
		MaxRetries:        3,
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	}

	var delays []time.Duration

	policy, err := retry.NewPolicy(config, func(attempt retry.Attempt) {
		delays = append(delays, attempt.Delay)
	})
	require.NoError(t, err)

	_ = policy.Execute(context.Background(), http.MethodGet, "/v2/invoices", func() error {
		return papi.NewAPIError(http.StatusServiceUnavailable, "", nil)
	})

	require.Len(t, delays, 3)

	for i, base := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond} {
		low := time.Duration(float64(base) * 0.9)
		high := time.Duration(float64(base) * 1.1)
		assert.GreaterOrEqual(t, delays[i], low, "attempt %d", i+1)
		assert.LessOrEqual(t, delays[i], high, "attempt %d", i+1)
	}
}

func TestPolicyRetryAfterOverride(t *testing.T) {
	t.Parallel()

	var delays []time.Duration

	policy, err := retry.NewPolicy(&papi.RetryConfig{
		Enabled:      true,
		MaxRetries:   1,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
	}, func(attempt retry.Attempt) {
		delays = append(delays, attempt.Delay)
	})
	require.NoError(t, err)

	attempts := 0

	err = policy.Execute(context.Background(), http.MethodGet, "/v2/invoices", func() error {
		attempts++
		if attempts == 1 {
			return &papi.RateLimitError{
				APIError:   papi.APIError{Status: http.StatusTooManyRequests},
				RetryAfter: 25 * time.Millisecond,
			}
		}

		return nil
	})
	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 25*time.Millisecond, delays[0])
}

func TestPolicyHookPanicDoesNotAbort(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(fastConfig(), func(retry.Attempt) {
		panic("observer bug")
	})
	require.NoError(t, err)

	attempts := 0

	err = policy.Execute(context.Background(), http.MethodGet, "/v2/invoices", func() error {
		attempts++
		if attempts < 2 {
			return papi.NewAPIError(http.StatusServiceUnavailable, "", nil)
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPolicyContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(&papi.RetryConfig{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0

	err = policy.Execute(ctx, http.MethodGet, "/v2/invoices", func() error {
		attempts++

		return papi.NewAPIError(http.StatusServiceUnavailable, "", nil)
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestPolicyDisabled(t *testing.T) {
	t.Parallel()

	policy, err := retry.NewPolicy(&papi.RetryConfig{Enabled: false})
	require.NoError(t, err)

	attempts := 0

	err = policy.Execute(context.Background(), http.MethodGet, "/v2/invoices", func() error {
		attempts++

		return papi.NewAPIError(http.StatusServiceUnavailable, "", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestNewPolicyValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *papi.RetryConfig
	}{
		{name: "negative retries", config: &papi.RetryConfig{Enabled: true, MaxRetries: -1}},
		{name: "negative delay", config: &papi.RetryConfig{Enabled: true, InitialDelay: -time.Second}},
		{name: "multiplier below one", config: &papi.RetryConfig{Enabled: true, BackoffMultiplier: 0.5}},
		{name: "max below initial", config: &papi.RetryConfig{Enabled: true, InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := retry.NewPolicy(tt.config)
			require.ErrorIs(t, err, papi.ErrInvalidRetryConfig)
		})
	}
}
