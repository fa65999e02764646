package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	"github.com/paperledge/papi/internal/constants"
	"github.com/paperledge/papi/pkg/papi"
)

// Static errors for err113 compliance.
var (
	ErrEmptyTokenResponse = errors.New("identity endpoint returned no access token")
)

// TokenManager provides access tokens for API requests, renewing them
// transparently when they expire.
type TokenManager interface {
	// GetToken returns a valid access token, exchanging or renewing as
	// needed. Concurrent callers share a single exchange.
	GetToken(ctx context.Context) (string, error)
	// RefreshToken forces a renewal regardless of the cached credential.
	RefreshToken(ctx context.Context) (string, error)
	// SetToken installs an externally obtained token.
	SetToken(token string, expiresAt time.Time)
}

// Config holds the identity-endpoint settings shared by all grants.
type Config struct {
	// TokenURL is the full OAuth2 token endpoint.
	TokenURL string

	ClientID     string
	ClientSecret string

	// Password grant
	Username string
	Password string

	// Seed refresh token for either grant family.
	RefreshToken string

	// Authorization-code grant
	AuthorizationCode string
	RedirectURI       string

	// HTTPClient overrides the exchange transport; used in tests.
	HTTPClient *http.Client
}

// tokenResponse is the wire shape of a successful token exchange.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// oauthErrorResponse is the wire shape of a failed token exchange.
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// exchanger performs form-encoded grants against the identity endpoint.
// Exchanges ride on a retrying HTTP client with a short deadline; a
// flapping identity endpoint should not stall API traffic for long.
type exchanger struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *retryablehttp.Client
	now          func() time.Time
}

func newExchanger(config *Config) *exchanger {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.TokenExchangeRetryMax
	retryClient.Logger = nil

	if config.HTTPClient != nil {
		retryClient.HTTPClient = config.HTTPClient
	} else {
		retryClient.HTTPClient.Timeout = constants.ShortHTTPTimeout
	}

	return &exchanger{
		tokenURL:     config.TokenURL,
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		client:       retryClient,
		now:          time.Now,
	}
}

// exchange posts a grant to the token endpoint and returns the resulting
// credential.
func (e *exchanger) exchange(ctx context.Context, form url.Values) (*papi.Credential, error) {
	if e.clientID != "" {
		form.Set("client_id", e.clientID)
	}

	if e.clientSecret != "" {
		form.Set("client_secret", e.clientSecret)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &papi.NetworkError{Op: http.MethodPost, URL: e.tokenURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &papi.NetworkError{Op: http.MethodPost, URL: e.tokenURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, exchangeError(resp.StatusCode, body)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if token.AccessToken == "" {
		return nil, ErrEmptyTokenResponse
	}

	cred := &papi.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}

	if cred.TokenType == "" {
		cred.TokenType = "bearer"
	}

	if token.ExpiresIn > 0 {
		cred.ExpiresAt = e.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return cred, nil
}

// exchangeError maps a failed exchange to an AuthError carrying the
// endpoint's error code and description as a problem.
func exchangeError(status int, body []byte) error {
	var oauthErr oauthErrorResponse

	_ = json.Unmarshal(body, &oauthErr)

	var problems []papi.Problem

	if oauthErr.Error != "" {
		problems = []papi.Problem{{
			Code:   oauthErr.Error,
			Title:  oauthErr.Error,
			Detail: oauthErr.ErrorDescription,
		}}
	}

	return &papi.AuthError{APIError: papi.APIError{Status: status, Problems: problems}}
}

// OAuth2TokenManager implements the password grant family: exchange with
// username/password, renew with the refresh token, and fall back to the
// password grant when the refresh token is rejected.
type OAuth2TokenManager struct {
	config    *Config
	store     papi.CredentialStore
	exchanger *exchanger
	group     singleflight.Group
}

// NewOAuth2TokenManager creates a manager backed by the given credential
// store. A nil store uses a process-local one.
func NewOAuth2TokenManager(config *Config, store papi.CredentialStore) *OAuth2TokenManager {
	if store == nil {
		store = NewMemoryStore()
	}

	return &OAuth2TokenManager{
		config:    config,
		store:     store,
		exchanger: newExchanger(config),
	}
}

// GetToken implements TokenManager.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	cred, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read credential store: %w", err)
	}

	if cred.Valid() {
		return cred.AccessToken, nil
	}

	return m.renew(ctx, false)
}

// RefreshToken implements TokenManager.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) (string, error) {
	return m.renew(ctx, true)
}

// SetToken implements TokenManager.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	_ = m.store.Set(context.Background(), &papi.Credential{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// renew performs one exchange shared across concurrent callers.
func (m *OAuth2TokenManager) renew(ctx context.Context, force bool) (string, error) {
	token, err, _ := m.group.Do("token", func() (interface{}, error) {
		cred, err := m.store.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read credential store: %w", err)
		}

		// A caller that queued behind an in-flight renewal may find the
		// store already holds a fresh credential.
		if !force && cred.Valid() {
			return cred.AccessToken, nil
		}

		fresh, err := m.obtain(ctx, cred)
		if err != nil {
			return nil, err
		}

		if err := m.store.Set(ctx, fresh); err != nil {
			return nil, fmt.Errorf("failed to persist credential: %w", err)
		}

		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

// obtain picks a grant: refresh token when one is available, with the
// password grant as fallback when the refresh token is rejected.
func (m *OAuth2TokenManager) obtain(ctx context.Context, cred *papi.Credential) (*papi.Credential, error) {
	refreshToken := m.config.RefreshToken
	if cred != nil && cred.RefreshToken != "" {
		refreshToken = cred.RefreshToken
	}

	if refreshToken != "" {
		fresh, err := m.exchanger.exchange(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		})
		if err == nil {
			return fresh, nil
		}

		if !papi.IsAuth(err) || !m.hasPassword() {
			return nil, err
		}
	}

	if m.hasPassword() {
		return m.exchanger.exchange(ctx, url.Values{
			"grant_type": {"password"},
			"username":   {m.config.Username},
			"password":   {m.config.Password},
		})
	}

	return nil, papi.ErrNoValidCredentials
}

func (m *OAuth2TokenManager) hasPassword() bool {
	return m.config.Username != "" && m.config.Password != ""
}

// AuthorizationCodeTokenManager implements the authorization-code grant:
// one code exchange, then refresh-token renewals only. The code is single
// use, so a rejected refresh token cannot fall back to re-exchanging it.
type AuthorizationCodeTokenManager struct {
	config    *Config
	store     papi.CredentialStore
	exchanger *exchanger
	group     singleflight.Group

	mu       sync.Mutex
	codeUsed bool
}

// NewAuthorizationCodeTokenManager creates a manager for the
// authorization-code grant. A nil store uses a process-local one.
func NewAuthorizationCodeTokenManager(config *Config, store papi.CredentialStore) (*AuthorizationCodeTokenManager, error) {
	if config.RedirectURI == "" {
		return nil, papi.ErrRedirectURIRequired
	}

	if store == nil {
		store = NewMemoryStore()
	}

	return &AuthorizationCodeTokenManager{
		config:    config,
		store:     store,
		exchanger: newExchanger(config),
	}, nil
}

// GetToken implements TokenManager.
func (m *AuthorizationCodeTokenManager) GetToken(ctx context.Context) (string, error) {
	cred, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read credential store: %w", err)
	}

	if cred.Valid() {
		return cred.AccessToken, nil
	}

	return m.renew(ctx, false)
}

// RefreshToken implements TokenManager.
func (m *AuthorizationCodeTokenManager) RefreshToken(ctx context.Context) (string, error) {
	return m.renew(ctx, true)
}

// SetToken implements TokenManager.
func (m *AuthorizationCodeTokenManager) SetToken(token string, expiresAt time.Time) {
	_ = m.store.Set(context.Background(), &papi.Credential{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

func (m *AuthorizationCodeTokenManager) renew(ctx context.Context, force bool) (string, error) {
	token, err, _ := m.group.Do("token", func() (interface{}, error) {
		cred, err := m.store.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read credential store: %w", err)
		}

		if !force && cred.Valid() {
			return cred.AccessToken, nil
		}

		fresh, err := m.obtain(ctx, cred)
		if err != nil {
			return nil, err
		}

		if err := m.store.Set(ctx, fresh); err != nil {
			return nil, fmt.Errorf("failed to persist credential: %w", err)
		}

		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (m *AuthorizationCodeTokenManager) obtain(ctx context.Context, cred *papi.Credential) (*papi.Credential, error) {
	refreshToken := m.config.RefreshToken
	if cred != nil && cred.RefreshToken != "" {
		refreshToken = cred.RefreshToken
	}

	if refreshToken != "" {
		return m.exchanger.exchange(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		})
	}

	m.mu.Lock()
	codeUsed := m.codeUsed
	m.mu.Unlock()

	if codeUsed || m.config.AuthorizationCode == "" {
		return nil, papi.ErrNoValidCredentials
	}

	fresh, err := m.exchanger.exchange(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {m.config.AuthorizationCode},
		"redirect_uri": {m.config.RedirectURI},
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.codeUsed = true
	m.mu.Unlock()

	return fresh, nil
}
