package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default deadline for API requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token exchanges.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry defaults.
const (
	// DefaultMaxRetries is the default number of retries after the initial attempt.
	DefaultMaxRetries = 3

	// DefaultInitialRetryDelay is the base delay before the first retry.
	DefaultInitialRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff.
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultBackoffMultiplier is the exponential backoff base.
	DefaultBackoffMultiplier = 2.0

	// RetryJitterFraction bounds the uniform jitter applied to backoff delays.
	RetryJitterFraction = 0.1

	// TokenExchangeRetryMax is the retry budget for identity-endpoint calls.
	TokenExchangeRetryMax = 2
)

// Rate limiter defaults.
const (
	// DefaultRateLimitCapacity is the request budget per window.
	DefaultRateLimitCapacity = 10

	// DefaultRateLimitWindow is the refill window for the request budget.
	DefaultRateLimitWindow = 10 * time.Second
)

// Token lifecycle.
const (
	// TokenExpiryLead is how long before actual expiry a credential is
	// treated as expired, so in-flight requests never carry a token that
	// lapses mid-request.
	TokenExpiryLead = 60 * time.Second

	// CredentialStoreKey is the key under which the single credential
	// record is kept in external stores.
	CredentialStoreKey = "credential"
)

// Job polling defaults.
const (
	// DefaultJobPollInterval is the sleep between job status reads.
	DefaultJobPollInterval = 2 * time.Second

	// DefaultJobPollTimeout bounds a poll loop end to end.
	DefaultJobPollTimeout = 5 * time.Minute
)

// Pagination limits.
const (
	// DefaultPageSize is the page size used when none is requested.
	DefaultPageSize = 10

	// MaxPageSize is the server-enforced page size ceiling. Larger
	// requests are clamped client-side rather than rejected.
	MaxPageSize = 25

	// MaxPages guards FetchAllPages against runaway pagination.
	MaxPages = 50
)
