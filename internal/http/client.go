// Package http implements the API transport: an interceptor pipeline
// around a rate-limited, retrying HTTP dispatcher that turns non-2xx
// responses into typed errors.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paperledge/papi/internal/constants"
	"github.com/paperledge/papi/internal/ratelimit"
	"github.com/paperledge/papi/internal/retry"
	"github.com/paperledge/papi/pkg/papi"
)

// TokenManager provides the bearer token attached to requests.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
}

// Request is a transport-level request before interceptors run.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is marshaled to JSON unless it is already raw bytes.
	Body any
}

// Client dispatches API requests.
type Client struct {
	baseURL      string
	httpClient   *nethttp.Client
	tokenManager TokenManager
	limiter      ratelimit.Limiter
	policy       *retry.Policy
	logger       papi.Logger
	debug        bool
	userAgent    string
	timeout      time.Duration

	extraRequestInterceptors  []papi.RequestInterceptor
	extraResponseInterceptors []papi.ResponseInterceptor

	chain *papi.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger papi.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging through the logger.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout sets the per-request deadline applied when the caller's
// context carries none.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient overrides the underlying HTTP client; used in tests.
func WithHTTPClient(httpClient *nethttp.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimiter sets the admission limiter.
func WithRateLimiter(limiter ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithInterceptors appends caller-supplied interceptors. They run after
// the built-in ones, in the order given.
func WithInterceptors(reqs []papi.RequestInterceptor, resps []papi.ResponseInterceptor) Option {
	return func(c *Client) {
		c.extraRequestInterceptors = append(c.extraRequestInterceptors, reqs...)
		c.extraResponseInterceptors = append(c.extraResponseInterceptors, resps...)
	}
}

// NewClient creates a transport for the given API base URL. The
// interceptor pipeline is assembled here and fixed for the client's
// lifetime.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &nethttp.Client{},
		tokenManager: tokenManager,
		timeout:      constants.DefaultHTTPTimeout,
		userAgent:    "papi/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.limiter == nil {
		client.limiter = ratelimit.NewFromConfig(nil)
	}

	if client.policy == nil {
		policy, err := retry.NewPolicy(nil)
		if err != nil {
			return nil, err
		}

		client.policy = policy
	}

	client.chain = client.buildChain()

	return client, nil
}

func (c *Client) buildChain() *papi.InterceptorChain {
	reqs := []papi.RequestInterceptor{
		papi.HeaderInterceptor(map[string]string{
			"User-Agent":   c.userAgent,
			"Accept":       "application/json",
			"Content-Type": "application/json",
		}),
	}

	if c.tokenManager != nil {
		reqs = append(reqs, papi.AuthenticationInterceptor(c.tokenManager.GetToken))
	}

	var resps []papi.ResponseInterceptor

	if c.debug && c.logger != nil {
		reqs = append(reqs, papi.LoggingInterceptor(c.logger))
		resps = append(resps, papi.LoggingResponseInterceptor(c.logger))
	}

	reqs = append(reqs, c.extraRequestInterceptors...)
	resps = append(resps, c.extraResponseInterceptors...)

	return papi.NewInterceptorChain(reqs, resps)
}

// Do dispatches a request through the interceptor pipeline, the rate
// limiter, and the retry policy.
func (c *Client) Do(ctx context.Context, req *Request) (*papi.Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	headers := make(nethttp.Header)
	for key, value := range req.Headers {
		headers.Set(key, value)
	}

	pipelineReq := &papi.Request{
		Method:  req.Method,
		Path:    req.Path,
		Query:   req.Query,
		Headers: headers,
		Body:    body,
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var resp *papi.Response

	// Request interceptors run per attempt so a credential renewed
	// during backoff is picked up by the next dispatch.
	err = c.policy.Execute(ctx, req.Method, req.Path, func() error {
		if err := c.chain.ExecuteRequestInterceptors(ctx, pipelineReq); err != nil {
			return err
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		var attemptErr error

		resp, attemptErr = c.dispatch(ctx, pipelineReq)

		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	if err := c.chain.ExecuteResponseInterceptors(ctx, pipelineReq, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// dispatch performs one HTTP round trip and classifies the outcome.
func (c *Client) dispatch(ctx context.Context, req *papi.Request) (*papi.Response, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header = req.Headers.Clone()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(req.Method, fullURL, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(req.Method, fullURL, err)
	}

	requestID := httpResp.Header.Get("X-Request-Id")

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, c.responseError(httpResp, respBody, requestID)
	}

	return &papi.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
		RequestID:  requestID,
	}, nil
}

// responseError maps a non-2xx response to a typed error.
func (c *Client) responseError(httpResp *nethttp.Response, body []byte, requestID string) error {
	problems := papi.ParseProblems(body)
	err := papi.NewAPIError(httpResp.StatusCode, requestID, problems)

	var rateLimitErr *papi.RateLimitError
	if errors.As(err, &rateLimitErr) {
		rateLimitErr.RetryAfter = parseRetryAfter(httpResp.Header.Get("Retry-After"))
	}

	return err
}

// classifyTransportError distinguishes deadline expiries from other
// transport failures.
func classifyTransportError(method, fullURL string, err error) error {
	netErr := papi.NetworkError{Op: method, URL: fullURL, Err: err}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &papi.TimeoutError{NetworkError: netErr}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &papi.TimeoutError{NetworkError: netErr}
	}

	return &netErr
}

// parseRetryAfter reads a Retry-After header, either delta-seconds or an
// HTTP date. Zero means absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}

		return time.Duration(seconds) * time.Second
	}

	if when, err := nethttp.ParseTime(value); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		return data, nil
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*papi.Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodGet, Path: path, Query: query})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*papi.Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*papi.Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*papi.Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*papi.Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodDelete, Path: path})
}
