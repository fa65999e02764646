package papi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/paperledge/papi/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNATSURLRequired    = errors.New("at least one NATS URL is required")
	ErrNATSBucketRequired = errors.New("NATS bucket name is required")
)

// NATSKVConfig configures the NATS KV credential store.
type NATSKVConfig struct {
	// URLs are NATS server URLs
	URLs []string

	// Bucket is the KV bucket name
	Bucket string

	// Username and Password for authentication (optional)
	Username string
	Password string

	// Token for token-based authentication (optional)
	Token string

	// CredsFile is the path to NATS credentials file (optional)
	CredsFile string
}

// NATSKVStore is a CredentialStore backed by a NATS KV bucket, so
// multiple processes share one token lifecycle. Plug it into
// Config.CredentialStore to opt in.
type NATSKVStore struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSKVStore connects to NATS and binds (or creates) the configured
// KV bucket.
func NewNATSKVStore(config *NATSKVConfig) (*NATSKVStore, error) {
	if config == nil || len(config.URLs) == 0 {
		return nil, ErrNATSURLRequired
	}

	if config.Bucket == "" {
		return nil, ErrNATSBucketRequired
	}

	opts := []nats.Option{nats.Name("papi-credential-store")}

	if config.Username != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	}

	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	conn, err := nats.Connect(strings.Join(config.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: config.Bucket})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to bind KV bucket %q: %w", config.Bucket, err)
	}

	return &NATSKVStore{conn: conn, kv: kv}, nil
}

// Get returns the stored credential, or nil when none is stored.
func (s *NATSKVStore) Get(_ context.Context) (*Credential, error) {
	entry, err := s.kv.Get(constants.CredentialStoreKey)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read credential from KV: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(entry.Value(), &cred); err != nil {
		return nil, fmt.Errorf("failed to decode stored credential: %w", err)
	}

	return &cred, nil
}

// Set stores the credential, replacing any previous one.
func (s *NATSKVStore) Set(_ context.Context, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if _, err := s.kv.Put(constants.CredentialStoreKey, data); err != nil {
		return fmt.Errorf("failed to write credential to KV: %w", err)
	}

	return nil
}

// Clear removes the stored credential.
func (s *NATSKVStore) Clear(_ context.Context) error {
	err := s.kv.Delete(constants.CredentialStoreKey)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete credential from KV: %w", err)
	}

	return nil
}

// Close drops the NATS connection.
func (s *NATSKVStore) Close() {
	s.conn.Close()
}
