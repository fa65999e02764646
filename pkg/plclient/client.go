package plclient

import (
	"strings"

	"github.com/paperledge/papi/internal/client"
	"github.com/paperledge/papi/pkg/papi"
)

// New creates a Paperledge API client from configuration. The endpoint
// is normalized (scheme defaulted to https, trailing slash trimmed) and
// the token endpoint derived from it when not set explicitly.
func New(config *papi.Config) (papi.Client, error) {
	if config == nil {
		return nil, papi.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, papi.ErrAPIEndpointRequired
	}

	normalized := *config
	normalized.APIEndpoint = normalizeEndpoint(config.APIEndpoint)

	if normalized.TokenURL == "" {
		normalized.TokenURL = normalized.APIEndpoint + "/oauth/token"
	}

	return client.New(&normalized)
}

// NewWithPassword creates a client using the resource-owner password
// grant.
func NewWithPassword(endpoint, clientID, clientSecret, username, password string) (papi.Client, error) {
	return New(&papi.Config{
		APIEndpoint:  endpoint,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	})
}

// NewWithToken creates a client using a static access token. The token
// is never renewed; requests fail with an authentication error once it
// expires.
func NewWithToken(endpoint, token string) (papi.Client, error) {
	return New(&papi.Config{
		APIEndpoint: endpoint,
		AccessToken: token,
	})
}

// NewWithAuthorizationCode creates a client using the authorization-code
// grant.
func NewWithAuthorizationCode(endpoint, clientID, clientSecret, code, redirectURI string) (papi.Client, error) {
	return New(&papi.Config{
		APIEndpoint:       endpoint,
		ClientID:          clientID,
		ClientSecret:      clientSecret,
		AuthorizationCode: code,
		RedirectURI:       redirectURI,
	})
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}
