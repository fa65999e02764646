package papi

import (
	"context"
	"time"
)

// Client is the public surface of the Paperledge API client.
type Client interface {
	Invoices() InvoicesClient
	Contacts() ContactsClient
	Jobs() JobsClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// RateLimitConfig tunes client-side admission control.
type RateLimitConfig struct {
	// Enabled toggles rate limiting. Disabled means acquire is a no-op.
	Enabled bool
	// RequestsPerWindow is the token-bucket capacity.
	RequestsPerWindow int
	// Window is the refill window for the bucket.
	Window time.Duration
}

// RetryConfig tunes the retry policy applied around every request.
type RetryConfig struct {
	// Enabled toggles retries entirely.
	Enabled bool
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// InitialDelay is the base backoff delay.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential base.
	BackoffMultiplier float64
	// RetryableStatuses is the HTTP status allow-list. Empty uses the
	// default 408/429/500/502/503/504.
	RetryableStatuses []int
	// RetryableMethods lists methods safe to retry on an allow-listed
	// status. Empty uses the default GET/HEAD/OPTIONS/PUT/DELETE.
	RetryableMethods []string
}

// Config represents client configuration for building a papi.Client.
//
// # Authentication precedence
//
//  1. AccessToken: used directly as a static bearer token.
//  2. AuthorizationCode (+RedirectURI): authorization-code grant; refresh
//     thereafter, no password fallback.
//  3. Username/Password: resource-owner password grant, refresh
//     thereafter, password re-authentication as fallback.
//
// RefreshToken may seed either grant family. TokenURL defaults to
// "<APIEndpoint>/oauth/token" when unset.
type Config struct {
	// APIEndpoint: base URL for the API (e.g. "https://api.example.com").
	// plclient.New normalizes this value by trimming a trailing slash and
	// adding "https://" if no scheme is present.
	APIEndpoint string

	// Authentication options (provide one family)
	ClientID          string
	ClientSecret      string
	Username          string
	Password          string
	RefreshToken      string
	AccessToken       string
	AuthorizationCode string
	RedirectURI       string
	// TokenURL: full OAuth2 token endpoint. Derived from APIEndpoint when
	// empty.
	TokenURL string

	// Optional configurations
	// HTTPTimeout is the per-request deadline applied when the caller's
	// context carries none.
	HTTPTimeout time.Duration
	// CredentialStore persists the credential record across exchanges.
	// Defaults to a process-local in-memory store.
	CredentialStore CredentialStore
	// RateLimit tunes client-side admission control. Nil uses the default
	// 10 requests per 10s window.
	RateLimit *RateLimitConfig
	// Retry tunes the retry policy. Nil uses the defaults.
	Retry *RetryConfig
	// Debug enables verbose request/response logging when Logger is set.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// JobStatus is the reported state of an asynchronous server-side job.
type JobStatus string

// Job states. Pending and running are non-terminal; done and error are
// terminal.
const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether the status is done or error.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Job represents an asynchronous server-side job observed by polling.
type Job struct {
	ID     string    `json:"id"               yaml:"id"`
	Status JobStatus `json:"status"           yaml:"status"`
	Errors []Problem `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// PollOptions tunes a job poll loop. Zero values use the defaults.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// JobResult is the non-throwing outcome of waiting for a job.
type JobResult struct {
	Success bool      `json:"success"          yaml:"success"`
	Job     *Job      `json:"job,omitempty"    yaml:"job,omitempty"`
	Errors  []Problem `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// JobsClient observes asynchronous jobs to completion.
type JobsClient interface {
	Get(ctx context.Context, jobID string) (*Job, error)
	Poll(ctx context.Context, jobID string, opts *PollOptions) (*Job, error)
	WaitForCompletion(ctx context.Context, jobID string, opts *PollOptions) (*JobResult, error)
}
