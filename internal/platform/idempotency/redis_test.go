package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreReserveAndReplay(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	key := StorageKey("uid:buyer-1", "checkout-1")

	claim, err := store.Reserve(ctx, key, "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	require.Equal(t, StateAcquired, claim.State)

	claim, err = store.Reserve(ctx, key, "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	require.Equal(t, StateInFlight, claim.State)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Content-Length", "14")
	require.NoError(t, store.Complete(ctx, key, "fp-1", Response{
		Status: http.StatusCreated,
		Header: header,
		Body:   []byte(`{"id":"ord_1"}`),
	}, fixedTime, time.Hour))

	claim, err = store.Reserve(ctx, key, "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	require.Equal(t, StateReplay, claim.State)
	require.Equal(t, http.StatusCreated, claim.Response.Status)
	require.Equal(t, `{"id":"ord_1"}`, string(claim.Response.Body))
	require.Equal(t, "application/json", claim.Response.Header.Get("Content-Type"))
	require.Empty(t, claim.Response.Header.Get("Content-Length"))
}

func TestRedisStoreFingerprintMismatch(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)

	_, err = store.Reserve(ctx, "key-1", "fp-2", fixedTime, time.Hour)
	require.ErrorIs(t, err, ErrFingerprintMismatch)
	require.ErrorIs(t, store.Complete(ctx, "key-1", "fp-2", Response{Status: http.StatusOK}, fixedTime, time.Hour), ErrFingerprintMismatch)
}

func TestRedisStoreExpiryAndRelease(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists(defaultRedisPrefix+"key-1"))
	mr.FastForward(2 * time.Minute)

	claim, err := store.Reserve(ctx, "key-1", "fp-2", fixedTime, time.Minute)
	require.NoError(t, err)
	require.Equal(t, StateAcquired, claim.State)

	require.NoError(t, store.Release(ctx, "key-1"))
	claim, err = store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Minute)
	require.NoError(t, err)
	require.Equal(t, StateAcquired, claim.State)

	removed, err := store.CleanupExpired(ctx, fixedTime, 10)
	require.NoError(t, err)
	require.Zero(t, removed)
	require.NoError(t, store.Ping(ctx))
}
