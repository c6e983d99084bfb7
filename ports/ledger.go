package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/warden/core"
)

// IdentityLedger is the authoritative external store of identity
// registration, secret digests, and wallet bindings. All calls are blocking
// round-trips that may fail independently; writes return only after the
// ledger has confirmed them. The engine never retries a call — a write that
// appears to fail may still have landed, so retry is the caller's decision.
type IdentityLedger interface {
	// GetUser looks up the registration state for an identity hash.
	GetUser(ctx context.Context, idHash common.Hash) (core.UserRecord, error)

	// SetSecretFirstTime establishes the secret digest for an identity that
	// has none. The ledger rejects the write if a secret already exists.
	SetSecretFirstTime(ctx context.Context, idHash, secretHash common.Hash) error

	// VerifySecret checks a secret digest against the stored one.
	VerifySecret(ctx context.Context, idHash, secretHash common.Hash) (bool, error)

	// BindWallet records the identity-to-wallet binding. The ledger rejects
	// the write if either side is already bound.
	BindWallet(ctx context.Context, idHash common.Hash, wallet common.Address) error
}
