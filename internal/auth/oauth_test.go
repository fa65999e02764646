package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperledge/papi/internal/auth"
	"github.com/paperledge/papi/pkg/papi"
)

// tokenEndpoint is a scripted identity endpoint for exchange tests.
type tokenEndpoint struct {
	mu        sync.Mutex
	exchanges []map[string]string
	handler   func(form map[string]string, w http.ResponseWriter)
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	form := make(map[string]string)
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}

	e.mu.Lock()
	e.exchanges = append(e.exchanges, form)
	handler := e.handler
	e.mu.Unlock()

	handler(form, w)
}

func (e *tokenEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.exchanges)
}

func (e *tokenEndpoint) grant(i int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.exchanges[i]["grant_type"]
}

func writeToken(w http.ResponseWriter, accessToken, refreshToken string, expiresIn int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"access_token":"` + accessToken + `","refresh_token":"` + refreshToken + `","token_type":"bearer","expires_in":` + strconv.Itoa(expiresIn) + `}`))
}

func newManager(t *testing.T, endpoint *tokenEndpoint, mutate func(*auth.Config)) *auth.OAuth2TokenManager {
	t.Helper()

	server := httptest.NewServer(endpoint)
	t.Cleanup(server.Close)

	config := &auth.Config{
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "papi-client",
		ClientSecret: "shhh",
		Username:     "user",
		Password:     "pass",
		HTTPClient:   server.Client(),
	}

	if mutate != nil {
		mutate(config)
	}

	return auth.NewOAuth2TokenManager(config, nil)
}

func TestOAuth2TokenManagerPasswordGrant(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		writeToken(w, "tok-1", "refresh-1", 3600)
	}}

	manager := newManager(t, endpoint, nil)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.Equal(t, 1, endpoint.count())
	assert.Equal(t, "password", endpoint.grant(0))

	e := endpoint.exchanges[0]
	assert.Equal(t, "user", e["username"])
	assert.Equal(t, "papi-client", e["client_id"])
}

func TestOAuth2TokenManagerCachesToken(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		writeToken(w, "tok-1", "", 3600)
	}}

	manager := newManager(t, endpoint, nil)

	for range 5 {
		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	}

	assert.Equal(t, 1, endpoint.count())
}

func TestOAuth2TokenManagerRefreshGrant(t *testing.T) {
	t.Parallel()

	var issued atomic.Int32

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		n := issued.Add(1)
		if n == 1 {
			// Short-lived token, inside the renewal lead on next use.
			writeToken(w, "tok-1", "refresh-1", 10)

			return
		}

		writeToken(w, "tok-2", "refresh-2", 3600)
	}}

	manager := newManager(t, endpoint, nil)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	token, err = manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	require.Equal(t, 2, endpoint.count())
	assert.Equal(t, "password", endpoint.grant(0))
	assert.Equal(t, "refresh_token", endpoint.grant(1))
	assert.Equal(t, "refresh-1", endpoint.exchanges[1]["refresh_token"])
}

func TestOAuth2TokenManagerPasswordFallback(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		if form["grant_type"] == "refresh_token" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))

			return
		}

		writeToken(w, "tok-new", "refresh-new", 3600)
	}}

	manager := newManager(t, endpoint, func(config *auth.Config) {
		config.RefreshToken = "refresh-stale"
	})

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-new", token)

	require.Equal(t, 2, endpoint.count())
	assert.Equal(t, "refresh_token", endpoint.grant(0))
	assert.Equal(t, "password", endpoint.grant(1))
}

func TestOAuth2TokenManagerExchangeError(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client"}`))
	}}

	manager := newManager(t, endpoint, nil)

	_, err := manager.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, papi.IsAuth(err))

	var authErr *papi.AuthError
	require.ErrorAs(t, err, &authErr)
	require.NotNil(t, authErr.FirstProblem())
	assert.Equal(t, "invalid_client", authErr.FirstProblem().Code)
	assert.Equal(t, "unknown client", authErr.FirstProblem().Detail)
}

func TestOAuth2TokenManagerNoCredentials(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		writeToken(w, "tok-1", "", 3600)
	}}

	manager := newManager(t, endpoint, func(config *auth.Config) {
		config.Username = ""
		config.Password = ""
	})

	_, err := manager.GetToken(context.Background())
	require.ErrorIs(t, err, papi.ErrNoValidCredentials)
	assert.Equal(t, 0, endpoint.count())
}

func TestOAuth2TokenManagerSingleFlight(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		// Slow exchange so concurrent callers pile up behind it.
		time.Sleep(50 * time.Millisecond)
		writeToken(w, "tok-1", "", 3600)
	}}

	manager := newManager(t, endpoint, nil)

	const callers = 20

	var wg sync.WaitGroup

	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tokens[i], errs[i] = manager.GetToken(context.Background())
		}()
	}

	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-1", tokens[i])
	}

	assert.Equal(t, 1, endpoint.count())
}

func TestOAuth2TokenManagerForcedRefresh(t *testing.T) {
	t.Parallel()

	var issued atomic.Int32

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		if issued.Add(1) == 1 {
			writeToken(w, "tok-1", "refresh-1", 3600)

			return
		}

		writeToken(w, "tok-2", "refresh-2", 3600)
	}}

	manager := newManager(t, endpoint, nil)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Forced renewal ignores the still-valid cached credential.
	token, err = manager.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, "refresh_token", endpoint.grant(1))
}

func TestOAuth2TokenManagerSetToken(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
		writeToken(w, "unused", "", 3600)
	}}

	manager := newManager(t, endpoint, nil)
	manager.SetToken("external-tok", time.Now().Add(time.Hour))

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "external-tok", token)
	assert.Equal(t, 0, endpoint.count())
}

func TestAuthorizationCodeTokenManager(t *testing.T) {
	t.Parallel()

	t.Run("requires redirect URI", func(t *testing.T) {
		t.Parallel()

		_, err := auth.NewAuthorizationCodeTokenManager(&auth.Config{AuthorizationCode: "code-1"}, nil)
		require.ErrorIs(t, err, papi.ErrRedirectURIRequired)
	})

	t.Run("exchanges the code once then refreshes", func(t *testing.T) {
		t.Parallel()

		var issued atomic.Int32

		endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
			if issued.Add(1) == 1 {
				writeToken(w, "tok-1", "refresh-1", 10)

				return
			}

			writeToken(w, "tok-2", "refresh-2", 3600)
		}}

		server := httptest.NewServer(endpoint)
		t.Cleanup(server.Close)

		manager, err := auth.NewAuthorizationCodeTokenManager(&auth.Config{
			TokenURL:          server.URL + "/oauth/token",
			ClientID:          "papi-client",
			AuthorizationCode: "code-1",
			RedirectURI:       "https://app.example/callback",
			HTTPClient:        server.Client(),
		}, nil)
		require.NoError(t, err)

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)

		token, err = manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-2", token)

		require.Equal(t, 2, endpoint.count())
		assert.Equal(t, "authorization_code", endpoint.grant(0))
		assert.Equal(t, "code-1", endpoint.exchanges[0]["code"])
		assert.Equal(t, "https://app.example/callback", endpoint.exchanges[0]["redirect_uri"])
		assert.Equal(t, "refresh_token", endpoint.grant(1))
	})

	t.Run("rejected refresh does not replay the code", func(t *testing.T) {
		t.Parallel()

		endpoint := &tokenEndpoint{handler: func(form map[string]string, w http.ResponseWriter) {
			if form["grant_type"] == "authorization_code" {
				writeToken(w, "tok-1", "refresh-1", 10)

				return
			}

			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}}

		server := httptest.NewServer(endpoint)
		t.Cleanup(server.Close)

		manager, err := auth.NewAuthorizationCodeTokenManager(&auth.Config{
			TokenURL:          server.URL + "/oauth/token",
			AuthorizationCode: "code-1",
			RedirectURI:       "https://app.example/callback",
			HTTPClient:        server.Client(),
		}, nil)
		require.NoError(t, err)

		_, err = manager.GetToken(context.Background())
		require.NoError(t, err)

		_, err = manager.GetToken(context.Background())
		require.Error(t, err)
		assert.True(t, papi.IsAuth(err))

		// Exactly one code exchange and one refresh attempt.
		require.Equal(t, 2, endpoint.count())
	})
}
