package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTier(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := Windows{WalletOnly: 350 * time.Second, FullRelogin: 900 * time.Second}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    Tier
	}{
		{"well inside both windows", 300 * time.Second, TierFresh},
		{"past wallet window", 400 * time.Second, TierWalletStale},
		{"exactly at wallet window", 350 * time.Second, TierWalletStale},
		{"exactly at full window", 900 * time.Second, TierFullStale},
		{"past full window", 901 * time.Second, TierFullStale},
		{"zero elapsed", 0, TierFresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTier(base.Add(tt.elapsed), base, base, w)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeTierIndependentTimestamps(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := Windows{WalletOnly: 350 * time.Second, FullRelogin: 900 * time.Second}

	// Wallet proof refreshed recently but full proof is old: the full window
	// alone decides the drop to full-stale.
	lastFull := base
	lastWallet := base.Add(800 * time.Second)
	assert.Equal(t, TierFullStale, ComputeTier(base.Add(901*time.Second), lastFull, lastWallet, w))

	// Full proof recent, wallet proof stale.
	assert.Equal(t, TierWalletStale, ComputeTier(base.Add(400*time.Second), base, base.Add(-time.Hour), w))
}

func TestComputeTierMonotonicDecay(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := Windows{WalletOnly: 350 * time.Second, FullRelogin: 900 * time.Second}

	// For fixed timestamps the tier never improves as time advances.
	prev := TierFresh
	for elapsed := time.Duration(0); elapsed <= 1200*time.Second; elapsed += time.Second {
		got := ComputeTier(base.Add(elapsed), base, base, w)
		require.GreaterOrEqual(t, got, prev, "tier improved at elapsed=%v", elapsed)
		prev = got
	}
}

func TestComputeTierNeverSeenProofs(t *testing.T) {
	w := Windows{WalletOnly: 350 * time.Second, FullRelogin: 900 * time.Second}

	// Zero-value timestamps age out immediately.
	got := ComputeTier(time.Now(), time.Time{}, time.Time{}, w)
	assert.Equal(t, TierFullStale, got)
}

func TestTierForSessionMissing(t *testing.T) {
	w := Windows{WalletOnly: 350 * time.Second, FullRelogin: 900 * time.Second}

	assert.Equal(t, TierFullStale, TierForSession(time.Now(), nil, w))
}

func TestComputeTierInvertedWindows(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Misconfigured windows (full <= wallet) must still be deterministic:
	// the full window dominates and the wallet-stale band collapses.
	w := Windows{WalletOnly: 900 * time.Second, FullRelogin: 350 * time.Second}

	assert.Equal(t, TierFresh, ComputeTier(base.Add(300*time.Second), base, base, w))
	assert.Equal(t, TierFullStale, ComputeTier(base.Add(400*time.Second), base, base, w))
	assert.Equal(t, TierFullStale, ComputeTier(base.Add(901*time.Second), base, base, w))
}

func TestTierStringAndRemedy(t *testing.T) {
	assert.Equal(t, "fresh", TierFresh.String())
	assert.Equal(t, "wallet_stale", TierWalletStale.String())
	assert.Equal(t, "full_stale", TierFullStale.String())

	assert.Equal(t, "none", TierFresh.Remedy())
	assert.Equal(t, "wallet_proof", TierWalletStale.Remedy())
	assert.Equal(t, "full_auth", TierFullStale.Remedy())
}
