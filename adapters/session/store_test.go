package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisStore(t *testing.T) ports.SessionStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, time.Hour)
}

func TestSessionStores(t *testing.T) {
	stores := map[string]func(t *testing.T) ports.SessionStore{
		"memory": func(t *testing.T) ports.SessionStore { return NewMemoryStore() },
		"redis":  redisStore,
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			t.Run("load missing returns default", func(t *testing.T) {
				session, err := store.Load(ctx, "nope")
				require.NoError(t, err)
				assert.Equal(t, core.Session{}, session)
			})

			t.Run("save and load", func(t *testing.T) {
				want := core.Session{
					Nonce:      "abc123",
					IsLoggedIn: true,
					Address:    "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
				}
				require.NoError(t, store.Save(ctx, "sid-1", want))

				got, err := store.Load(ctx, "sid-1")
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})

			t.Run("destroy resets to default", func(t *testing.T) {
				require.NoError(t, store.Save(ctx, "sid-2", core.Session{Nonce: "n"}))
				require.NoError(t, store.Destroy(ctx, "sid-2"))

				got, err := store.Load(ctx, "sid-2")
				require.NoError(t, err)
				assert.Equal(t, core.Session{}, got)
			})

			t.Run("destroy missing is a no-op", func(t *testing.T) {
				require.NoError(t, store.Destroy(ctx, "never-existed"))
			})
		})
	}
}
