package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/warden/core"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisSessionRefresh(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, found, err := s.GetSession(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RefreshFull(ctx, "0xabc", at))

	sess, found, err := s.GetSession(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, at.UnixMilli(), sess.LastFullAuthAt.UnixMilli())
	assert.Equal(t, at.UnixMilli(), sess.LastWalletAuthAt.UnixMilli())

	// Wallet-only refresh advances a single field.
	later := at.Add(10 * time.Minute)
	require.NoError(t, s.RefreshWallet(ctx, "0xabc", later))

	sess, _, err = s.GetSession(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), sess.LastFullAuthAt.UnixMilli())
	assert.Equal(t, later.UnixMilli(), sess.LastWalletAuthAt.UnixMilli())
}

func TestRedisSessionRefreshNeverMovesBackwards(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, s.RefreshFull(ctx, "0xabc", later))
	require.NoError(t, s.RefreshFull(ctx, "0xabc", earlier))
	require.NoError(t, s.RefreshWallet(ctx, "0xabc", earlier))

	sess, _, err := s.GetSession(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, later.UnixMilli(), sess.LastFullAuthAt.UnixMilli())
	assert.Equal(t, later.UnixMilli(), sess.LastWalletAuthAt.UnixMilli())
}

func TestRedisBindingConflicts(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	id := core.HashCredential("tag-1")
	otherID := core.HashCredential("tag-2")
	w1 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	w2 := common.HexToAddress("0x2222222222222222222222222222222222222222")

	require.NoError(t, s.PutBinding(ctx, core.Binding{IDHash: id, Wallet: w1}))

	// Same pair again is fine.
	require.NoError(t, s.PutBinding(ctx, core.Binding{IDHash: id, Wallet: w1}))

	// Same identity, different wallet.
	err := s.PutBinding(ctx, core.Binding{IDHash: id, Wallet: w2})
	assert.ErrorIs(t, err, core.ErrBindingConflict)

	// Same wallet, different identity.
	err = s.PutBinding(ctx, core.Binding{IDHash: otherID, Wallet: w1})
	assert.ErrorIs(t, err, core.ErrBindingConflict)

	// Original binding is untouched.
	got, found, err := s.WalletByIdentity(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, w1, got)

	gotID, found, err := s.IdentityByWallet(ctx, w1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, gotID)
}

func TestRedisNonceSingleUse(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutNonce(ctx, "conv-1", "nonce-a", time.Minute))

	nonce, found, err := s.TakeNonce(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "nonce-a", nonce)

	// Second take fails: the slot was consumed.
	_, found, err = s.TakeNonce(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisNonceOverwrite(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutNonce(ctx, "conv-1", "nonce-a", time.Minute))
	require.NoError(t, s.PutNonce(ctx, "conv-1", "nonce-b", time.Minute))

	nonce, found, err := s.TakeNonce(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "nonce-b", nonce)
}

func TestRedisNonceExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutNonce(ctx, "conv-1", "nonce-a", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := s.TakeNonce(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, found)
}
