package papi

import (
	"context"
	"time"

	"github.com/paperledge/papi/internal/constants"
)

// Credential is the stored outcome of an identity exchange. It is owned
// by the token lifecycle manager; callers only ever see the access token.
type Credential struct {
	AccessToken  string    `json:"access_token"            yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"              yaml:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"              yaml:"expires_at"`
}

// Valid reports whether the credential can still be used. A credential
// inside the expiry lead window counts as expired so it is renewed before
// it lapses mid-request.
func (c *Credential) Valid() bool {
	if c == nil || c.AccessToken == "" {
		return false
	}

	if c.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpiryLead).Before(c.ExpiresAt)
}

// CredentialStore persists the single credential record. Implementations
// may be process-local or backed by an external store.
type CredentialStore interface {
	Get(ctx context.Context) (*Credential, error)
	Set(ctx context.Context, cred *Credential) error
	Clear(ctx context.Context) error
}
