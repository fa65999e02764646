package papi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paperledge/papi/pkg/papi"
)

// The KV-backed store must satisfy the interface Config.CredentialStore
// accepts.
var _ papi.CredentialStore = (*papi.NATSKVStore)(nil)

func TestNATSKVStoreConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := papi.NewNATSKVStore(nil)
	assert.ErrorIs(t, err, papi.ErrNATSURLRequired)

	_, err = papi.NewNATSKVStore(&papi.NATSKVConfig{})
	assert.ErrorIs(t, err, papi.ErrNATSURLRequired)

	_, err = papi.NewNATSKVStore(&papi.NATSKVConfig{URLs: []string{"nats://localhost:4222"}})
	assert.ErrorIs(t, err, papi.ErrNATSBucketRequired)
}
