package core

import "time"

// Tier describes how much re-proof a session currently needs, ordered by
// decreasing trust.
type Tier int

const (
	// TierFresh grants access with no further proof.
	TierFresh Tier = iota

	// TierWalletStale requires a wallet-ownership re-proof.
	TierWalletStale

	// TierFullStale requires a full primary-factor re-proof. It is also the
	// tier of a session that does not exist: absence of trust state is the
	// maximum-distrust state.
	TierFullStale
)

func (t Tier) String() string {
	switch t {
	case TierFresh:
		return "fresh"
	case TierWalletStale:
		return "wallet_stale"
	default:
		return "full_stale"
	}
}

// Windows holds the two freshness durations. FullRelogin is expected to be
// the longer of the two; if misconfigured the tier computation still behaves
// deterministically, it just collapses the wallet-stale band.
type Windows struct {
	WalletOnly  time.Duration
	FullRelogin time.Duration
}

// ComputeTier derives the trust tier from the two proof timestamps. It is a
// pure function and must be recomputed on every authorization check; the
// tier is never cached beyond the timestamps it derives from.
//
// Zero timestamps (proof never presented) age out immediately, so a brand-new
// or unknown session computes as TierFullStale.
func ComputeTier(now, lastFullAuthAt, lastWalletAuthAt time.Time, w Windows) Tier {
	needFull := now.Sub(lastFullAuthAt) >= w.FullRelogin
	if needFull {
		return TierFullStale
	}
	if now.Sub(lastWalletAuthAt) >= w.WalletOnly {
		return TierWalletStale
	}
	return TierFresh
}

// TierForSession computes the tier for a possibly missing session. A nil
// session is treated identically to one that has never proved anything.
func TierForSession(now time.Time, sess *Session, w Windows) Tier {
	if sess == nil {
		return TierFullStale
	}
	return ComputeTier(now, sess.LastFullAuthAt, sess.LastWalletAuthAt, w)
}

// Remedy names the re-proof a tier demands, for machine-readable responses.
func (t Tier) Remedy() string {
	switch t {
	case TierFresh:
		return "none"
	case TierWalletStale:
		return "wallet_proof"
	default:
		return "full_auth"
	}
}
