package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperledge/papi/internal/auth"
	"github.com/paperledge/papi/pkg/papi"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := auth.NewMemoryStore()

	t.Run("empty store returns nil", func(t *testing.T) {
		cred, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("set and get", func(t *testing.T) {
		original := &papi.Credential{
			AccessToken:  "tok",
			RefreshToken: "refresh",
			TokenType:    "bearer",
			ExpiresAt:    time.Now().Add(time.Hour),
		}
		require.NoError(t, store.Set(ctx, original))

		cred, err := store.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "tok", cred.AccessToken)

		// The store hands out copies, not its internal record.
		cred.AccessToken = "mutated"
		again, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", again.AccessToken)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))

		cred, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, cred)
	})
}

func TestMemoryStoreConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := auth.NewMemoryStore()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_ = store.Set(ctx, &papi.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Duration(i) * time.Second)})
		}()

		go func() {
			defer wg.Done()

			_, _ = store.Get(ctx)
		}()
	}

	wg.Wait()

	cred, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok", cred.AccessToken)
}
