package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/warden/core"
)

func TestMemorySessionRefresh(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RefreshWallet(ctx, "0xabc", at))

	sess, found, err := s.GetSession(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, at, sess.LastWalletAuthAt)
	assert.True(t, sess.LastFullAuthAt.IsZero())

	// Stale refresh never moves timestamps backwards.
	require.NoError(t, s.RefreshWallet(ctx, "0xabc", at.Add(-time.Hour)))
	sess, _, _ = s.GetSession(ctx, "0xabc")
	assert.Equal(t, at, sess.LastWalletAuthAt)
}

func TestMemoryConcurrentRefresh(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		at := base.Add(time.Duration(i) * time.Second)
		go func() {
			defer wg.Done()
			_ = s.RefreshFull(ctx, "0xabc", at)
		}()
		go func() {
			defer wg.Done()
			_ = s.RefreshWallet(ctx, "0xabc", at)
		}()
	}
	wg.Wait()

	sess, found, err := s.GetSession(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, base.Add(49*time.Second), sess.LastFullAuthAt)
	assert.Equal(t, base.Add(49*time.Second), sess.LastWalletAuthAt)
}

func TestMemoryBindingConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id := core.HashCredential("tag-1")
	w1 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	w2 := common.HexToAddress("0x2222222222222222222222222222222222222222")

	require.NoError(t, s.PutBinding(ctx, core.Binding{IDHash: id, Wallet: w1}))
	assert.ErrorIs(t, s.PutBinding(ctx, core.Binding{IDHash: id, Wallet: w2}), core.ErrBindingConflict)

	got, found, _ := s.WalletByIdentity(ctx, id)
	require.True(t, found)
	assert.Equal(t, w1, got)
}

func TestMemoryNonceSingleUse(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutNonce(ctx, "conv-1", "nonce-a", time.Minute))

	nonce, found, err := s.TakeNonce(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "nonce-a", nonce)

	_, found, _ = s.TakeNonce(ctx, "conv-1")
	assert.False(t, found)
}

func TestMemoryNonceExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutNonce(ctx, "conv-1", "nonce-a", -time.Second))

	_, found, err := s.TakeNonce(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, found)
}
