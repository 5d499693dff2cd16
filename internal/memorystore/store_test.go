package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client), mr
}

func TestGetSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "user_context:u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetWithTTL(ctx, "user_context:u1", "portfolio block", 300*time.Second))

	val, err := store.Get(ctx, "user_context:u1")
	require.NoError(t, err)
	assert.Equal(t, "portfolio block", val)
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "user_context:u1", "block", 300*time.Second))

	mr.FastForward(301 * time.Second)

	_, err := store.Get(ctx, "user_context:u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNilClientDegrades(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = store.SetWithTTL(ctx, "k", "v", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, store.Health(ctx), ErrUnavailable)
}

func TestUnreachableBackendDegrades(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}
