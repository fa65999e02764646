// Package client implements the papi.Client interface on top of the
// transport, wiring authentication, rate limiting, and retries from
// client configuration.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paperledge/papi/internal/auth"
	internalhttp "github.com/paperledge/papi/internal/http"
	"github.com/paperledge/papi/internal/ratelimit"
	"github.com/paperledge/papi/internal/retry"
	"github.com/paperledge/papi/pkg/papi"
)

// Client implements papi.Client.
type Client struct {
	transport *internalhttp.Client
	limiter   ratelimit.Limiter

	invoices *InvoicesClient
	contacts *ContactsClient
	jobs     *JobsClient
}

// New builds a client from validated configuration. Validation and
// endpoint normalization happen in pkg/plclient before reaching here.
func New(config *papi.Config) (*Client, error) {
	tokenManager, err := buildTokenManager(config)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewFromConfig(config.RateLimit)

	var hooks []retry.Hook
	if config.Logger != nil {
		hooks = append(hooks, retryLogHook(config.Logger))
	}

	policy, err := retry.NewPolicy(config.Retry, hooks...)
	if err != nil {
		return nil, err
	}

	opts := []internalhttp.Option{
		internalhttp.WithRateLimiter(limiter),
		internalhttp.WithRetryPolicy(policy),
		internalhttp.WithDebug(config.Debug),
	}

	if config.Logger != nil {
		opts = append(opts, internalhttp.WithLogger(config.Logger))
	}

	if config.UserAgent != "" {
		opts = append(opts, internalhttp.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, internalhttp.WithTimeout(config.HTTPTimeout))
	}

	transport, err := internalhttp.NewClient(config.APIEndpoint, tokenManager, opts...)
	if err != nil {
		return nil, err
	}

	client := &Client{transport: transport, limiter: limiter}
	client.invoices = &InvoicesClient{client: client}
	client.contacts = &ContactsClient{client: client}
	client.jobs = newJobsClient(client)

	return client, nil
}

// retryLogHook reports retry attempts through the configured logger.
func retryLogHook(logger papi.Logger) retry.Hook {
	return func(attempt retry.Attempt) {
		logger.Warn("Retrying request", map[string]interface{}{
			"attempt": attempt.Number,
			"method":  attempt.Method,
			"path":    attempt.Path,
			"delay":   attempt.Delay.String(),
			"error":   attempt.Err.Error(),
		})
	}
}

// buildTokenManager picks the grant family per configuration precedence:
// a static access token wins, then the authorization-code grant, then the
// password grant (a bare refresh token counts as the password family).
func buildTokenManager(config *papi.Config) (internalhttp.TokenManager, error) {
	store := config.CredentialStore
	if store == nil {
		store = auth.NewMemoryStore()
	}

	authConfig := &auth.Config{
		TokenURL:          config.TokenURL,
		ClientID:          config.ClientID,
		ClientSecret:      config.ClientSecret,
		Username:          config.Username,
		Password:          config.Password,
		RefreshToken:      config.RefreshToken,
		AuthorizationCode: config.AuthorizationCode,
		RedirectURI:       config.RedirectURI,
	}

	switch {
	case config.AccessToken != "":
		return staticTokenManager{token: config.AccessToken}, nil
	case config.AuthorizationCode != "":
		return auth.NewAuthorizationCodeTokenManager(authConfig, store)
	case config.Username != "" || config.RefreshToken != "":
		return auth.NewOAuth2TokenManager(authConfig, store), nil
	default:
		return nil, papi.ErrNoCredentials
	}
}

// staticTokenManager serves a fixed token that is never renewed.
type staticTokenManager struct {
	token string
}

func (m staticTokenManager) GetToken(context.Context) (string, error) {
	return m.token, nil
}

func (m staticTokenManager) RefreshToken(context.Context) (string, error) {
	return m.token, nil
}

func (m staticTokenManager) SetToken(string, time.Time) {}

// Invoices implements papi.Client.
func (c *Client) Invoices() papi.InvoicesClient {
	return c.invoices
}

// Contacts implements papi.Client.
func (c *Client) Contacts() papi.ContactsClient {
	return c.contacts
}

// Jobs implements papi.Client.
func (c *Client) Jobs() papi.JobsClient {
	return c.jobs
}

// ResetRateLimiter refills the limiter and rejects queued waiters.
func (c *Client) ResetRateLimiter() {
	c.limiter.Reset()
}

// getEnvelope fetches a single-resource endpoint.
func (c *Client) getEnvelope(ctx context.Context, path string, params *papi.QueryParams) (*papi.ResourceEnvelope, error) {
	resp, err := c.transport.Get(ctx, path, params.ToValues())
	if err != nil {
		return nil, err
	}

	return decodeEnvelope(resp.Body)
}

// postEnvelope posts a body and decodes the single-resource result.
func (c *Client) postEnvelope(ctx context.Context, path string, body any) (*papi.ResourceEnvelope, error) {
	resp, err := c.transport.Post(ctx, path, body)
	if err != nil {
		return nil, err
	}

	return decodeEnvelope(resp.Body)
}

// patchEnvelope patches a resource and decodes the result.
func (c *Client) patchEnvelope(ctx context.Context, path string, body any) (*papi.ResourceEnvelope, error) {
	resp, err := c.transport.Patch(ctx, path, body)
	if err != nil {
		return nil, err
	}

	return decodeEnvelope(resp.Body)
}

// delete issues a DELETE and discards the (empty) response.
func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.transport.Delete(ctx, path)

	return err
}

// ListWithPath fetches one page of a list endpoint. It satisfies
// papi.PageLister so pagination helpers work against any list path.
func (c *Client) ListWithPath(ctx context.Context, path string, params *papi.QueryParams) (*papi.ListEnvelope, error) {
	resp, err := c.transport.Get(ctx, path, params.ToValues())
	if err != nil {
		return nil, err
	}

	var envelope papi.ListEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}

	return &envelope, nil
}

func decodeEnvelope(body []byte) (*papi.ResourceEnvelope, error) {
	var envelope papi.ResourceEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode resource response: %w", err)
	}

	return &envelope, nil
}
