//go:build integration

package cache_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/adapter/cache"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
)

func setupStore(t *testing.T) *cache.RedisResetStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return cache.NewRedisResetStore(client)
}

func TestRedisResetStoreRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	token := domain.ResetToken{
		Token:     fmt.Sprintf("it-%d", time.Now().UnixNano()),
		UserID:    7,
		ExpiresAt: time.Now().Add(15 * time.Minute).UTC(),
	}
	require.NoError(t, store.Create(ctx, token))

	found, err := store.GetByToken(ctx, token.Token)
	require.NoError(t, err)
	require.Equal(t, token.UserID, found.UserID)
	require.WithinDuration(t, token.ExpiresAt, found.ExpiresAt, time.Second)

	require.NoError(t, store.Delete(ctx, token.Token))
	_, err = store.GetByToken(ctx, token.Token)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// deleting twice is fine
	require.NoError(t, store.Delete(ctx, token.Token))
}

func TestRedisResetStoreKeepsExpiredRowReadable(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	token := domain.ResetToken{
		Token:     fmt.Sprintf("it-exp-%d", time.Now().UnixNano()),
		UserID:    7,
		ExpiresAt: time.Now().Add(time.Second).UTC(),
	}
	require.NoError(t, store.Create(ctx, token))

	time.Sleep(1200 * time.Millisecond)

	// past ExpiresAt but inside the key TTL: the row must still read back
	// so redemption can answer "expired" instead of "unknown"
	found, err := store.GetByToken(ctx, token.Token)
	require.NoError(t, err)
	require.True(t, found.Expired(time.Now()))

	require.NoError(t, store.Delete(ctx, token.Token))
}
