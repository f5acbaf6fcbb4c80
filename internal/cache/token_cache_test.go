package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache(t *testing.T) {
	_, client := newRedis(t)

	caches := map[string]TokenCache{
		"redis":  NewTokenCache(client),
		"memory": NewMemoryTokenCache(),
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			revoked, err := c.IsRevoked(ctx, "tok-1")
			require.NoError(t, err)
			assert.False(t, revoked)

			require.NoError(t, c.Revoke(ctx, "tok-1", 0))
			require.NoError(t, c.Revoke(ctx, "tok-2", time.Hour))

			revoked, err = c.IsRevoked(ctx, "tok-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = c.IsRevoked(ctx, "tok-2")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = c.IsRevoked(ctx, "tok-3")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}
}
