package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// BindingResolver owns the identity-to-wallet relation. The ledger is the
// source of truth; the BindingStore is a local mirror that is only written
// after a confirmed ledger write and must never diverge from it.
type BindingResolver struct {
	store  ports.BindingStore
	ledger ports.IdentityLedger
	locks  *keyedMutex
	logger *zap.Logger
}

// NewBindingResolver creates a new binding resolver.
func NewBindingResolver(store ports.BindingStore, ledger ports.IdentityLedger, logger *zap.Logger) *BindingResolver {
	return &BindingResolver{
		store:  store,
		ledger: ledger,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// WalletFor resolves the wallet bound to an identity, consulting the ledger
// on a mirror miss and backfilling the mirror from the authoritative answer.
func (r *BindingResolver) WalletFor(ctx context.Context, idHash common.Hash) (common.Address, bool, error) {
	wallet, found, err := r.store.WalletByIdentity(ctx, idHash)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("binding lookup failed: %w", err)
	}
	if found {
		return wallet, true, nil
	}

	rec, err := r.ledger.GetUser(ctx, idHash)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	if !rec.Bound() {
		return common.Address{}, false, nil
	}

	r.Mirror(ctx, core.Binding{IDHash: idHash, Wallet: rec.BoundWallet})
	return rec.BoundWallet, true, nil
}

// IdentityFor resolves the identity bound to a wallet. The ledger offers no
// reverse lookup, so this answers from the mirror, which is populated by
// every confirmed bind and every primary auth that observes a binding.
func (r *BindingResolver) IdentityFor(ctx context.Context, wallet common.Address) (common.Hash, bool, error) {
	idHash, found, err := r.store.IdentityByWallet(ctx, wallet)
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("binding lookup failed: %w", err)
	}
	return idHash, found, nil
}

// Mirror records a binding observed on the ledger into the local mirror.
// A conflict here means the mirror diverged from the ledger, which is worth
// a loud log but must not fail the caller's auth.
func (r *BindingResolver) Mirror(ctx context.Context, b core.Binding) {
	if err := r.store.PutBinding(ctx, b); err != nil {
		r.logger.Error("binding mirror diverged from ledger",
			zap.String("id_hash", b.IDHash.Hex()),
			zap.String("wallet", b.Wallet.Hex()),
			zap.Error(err),
		)
	}
}

// Bind establishes a first binding. Concurrent first-bind attempts for the
// same identity or wallet are serialized so the one-identity-one-wallet
// invariant holds; the loser of a race observes the winner's binding and
// fails with core.ErrBindingConflict. The mirror is written only after the
// ledger confirms the bind.
//
// The returned bool reports whether this call created the binding. When the
// ledger (or the mirror) already carried the same pair — bound by another
// deployment, or before a cache loss — Bind backfills the mirror and returns
// false so the caller treats the proof as a refresh, not a first bind.
func (r *BindingResolver) Bind(ctx context.Context, idHash common.Hash, wallet common.Address) (bool, error) {
	for _, unlock := range r.lockPair("bind:id:"+idHash.Hex(), "bind:addr:"+core.SessionKey(wallet)) {
		defer unlock()
	}

	// Re-check under the locks: either side may have been bound while we
	// waited.
	if existing, found, err := r.store.WalletByIdentity(ctx, idHash); err != nil {
		return false, fmt.Errorf("binding lookup failed: %w", err)
	} else if found {
		if existing == wallet {
			return false, nil
		}
		return false, core.ErrBindingConflict
	}
	if existing, found, err := r.store.IdentityByWallet(ctx, wallet); err != nil {
		return false, fmt.Errorf("binding lookup failed: %w", err)
	} else if found && existing != idHash {
		return false, core.ErrBindingConflict
	}

	// The ledger is authoritative for the forward direction.
	rec, err := r.ledger.GetUser(ctx, idHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	if !rec.Exists {
		return false, core.ErrNotRegistered
	}
	if rec.Bound() {
		if rec.BoundWallet == wallet {
			r.Mirror(ctx, core.Binding{IDHash: idHash, Wallet: wallet})
			return false, nil
		}
		return false, core.ErrBindingConflict
	}

	if err := r.ledger.BindWallet(ctx, idHash, wallet); err != nil {
		// The write may have reverted because another process bound one of
		// the parties between our re-check and the submission. Re-read before
		// reporting a write failure so the race loser sees a conflict, not a
		// gateway error.
		if rec, rerr := r.ledger.GetUser(ctx, idHash); rerr == nil && rec.Bound() {
			if rec.BoundWallet == wallet {
				r.Mirror(ctx, core.Binding{IDHash: idHash, Wallet: wallet})
				return false, nil
			}
			return false, core.ErrBindingConflict
		}
		return false, fmt.Errorf("%w: %v", core.ErrBindFailed, err)
	}

	// Record locally only after confirmation. A conflict at this point means
	// another instance won a cross-process race; surface it rather than
	// overwrite.
	if err := r.store.PutBinding(ctx, core.Binding{IDHash: idHash, Wallet: wallet}); err != nil {
		return false, err
	}

	r.logger.Info("identity bound to wallet",
		zap.String("id_hash", idHash.Hex()),
		zap.String("wallet", core.SessionKey(wallet)),
	)
	return true, nil
}

// lockPair acquires both keyed locks in a stable order to avoid deadlock
// with a concurrent Bind locking the same pair in reverse.
func (r *BindingResolver) lockPair(a, b string) []func() {
	keys := []string{a, b}
	sort.Strings(keys)

	unlocks := make([]func(), 0, 2)
	for _, key := range keys {
		unlocks = append(unlocks, r.locks.Lock(key))
	}
	return unlocks
}
