package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetStore(t *testing.T) (ResetTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewResetTokenStore(rdb), mr
}

func TestResetTokenStore_SaveLookupClaim(t *testing.T) {
	store, mr := newResetStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", 12, 72*time.Hour))
	val, err := mr.Get("forgot-password:tok")
	require.NoError(t, err)
	assert.Equal(t, "12", val)
	assert.Equal(t, float64(259200), mr.TTL("forgot-password:tok").Seconds())

	id, found, err := store.Lookup(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(12), id)

	id, found, err = store.Claim(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(12), id)
	assert.False(t, mr.Exists("forgot-password:tok"))

	_, found, err = store.Lookup(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Claim(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found, "a token can only be claimed once")
}

func TestResetTokenStore_Expires(t *testing.T) {
	store, mr := newResetStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", 1, time.Hour))
	mr.FastForward(time.Hour + time.Second)

	_, found, err := store.Lookup(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResetTokenStore_GarbageAndEmpty(t *testing.T) {
	store, mr := newResetStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("forgot-password:bad", "not-a-number"))
	_, found, err := store.Lookup(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Lookup(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Claim(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)
}
