package ports

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/warden/core"
)

// SessionStore maps a session key (lowercased bound wallet address) to its
// two proof timestamps. Refresh operations are atomic per key and only move
// timestamps forward.
type SessionStore interface {
	// GetSession returns the session for a key, or found=false when no
	// session has ever been written for it.
	GetSession(ctx context.Context, key string) (sess core.Session, found bool, err error)

	// RefreshFull advances both timestamps to at. Used when the primary
	// factor succeeds with an established binding: a ledger-verified primary
	// proof counts as proof of both factors.
	RefreshFull(ctx context.Context, key string, at time.Time) error

	// RefreshWallet advances only the wallet-proof timestamp to at.
	RefreshWallet(ctx context.Context, key string, at time.Time) error
}

// BindingStore is the local mirror of the ledger's binding relation. It must
// only be written after a confirmed ledger write, and it enforces the
// one-identity-one-wallet invariant on both directions: PutBinding fails
// with core.ErrBindingConflict when either side is already bound to a
// different counterpart.
type BindingStore interface {
	PutBinding(ctx context.Context, b core.Binding) error
	WalletByIdentity(ctx context.Context, idHash common.Hash) (common.Address, bool, error)
	IdentityByWallet(ctx context.Context, wallet common.Address) (common.Hash, bool, error)
}

// ChallengeStore holds at most one pending nonce per client conversation.
// Putting a nonce overwrites any prior unconsumed one; taking it consumes
// the slot atomically so a nonce can never be verified twice.
type ChallengeStore interface {
	PutNonce(ctx context.Context, conversationID, nonce string, ttl time.Duration) error

	// TakeNonce removes and returns the pending nonce. found=false means no
	// active nonce exists (never issued, expired, or already consumed).
	TakeNonce(ctx context.Context, conversationID string) (nonce string, found bool, err error)
}
