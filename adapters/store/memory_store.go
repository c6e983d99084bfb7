package store

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// MemoryStore is an in-memory implementation of the store ports, intended
// for tests and single-process development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]core.Session
	byID     map[common.Hash]common.Address
	byAddr   map[string]common.Hash
	nonces   map[string]memNonce
}

type memNonce struct {
	value     string
	expiresAt time.Time
}

var (
	_ ports.SessionStore   = (*MemoryStore)(nil)
	_ ports.BindingStore   = (*MemoryStore)(nil)
	_ ports.ChallengeStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]core.Session),
		byID:     make(map[common.Hash]common.Address),
		byAddr:   make(map[string]common.Hash),
		nonces:   make(map[string]memNonce),
	}
}

// GetSession returns the session for a key.
func (s *MemoryStore) GetSession(ctx context.Context, key string) (core.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	return sess, ok, nil
}

// RefreshFull advances both proof timestamps, never backwards.
func (s *MemoryStore) RefreshFull(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	sess.Wallet = key
	if at.After(sess.LastFullAuthAt) {
		sess.LastFullAuthAt = at
	}
	if at.After(sess.LastWalletAuthAt) {
		sess.LastWalletAuthAt = at
	}
	s.sessions[key] = sess
	return nil
}

// RefreshWallet advances only the wallet-proof timestamp.
func (s *MemoryStore) RefreshWallet(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[key]
	sess.Wallet = key
	if at.After(sess.LastWalletAuthAt) {
		sess.LastWalletAuthAt = at
	}
	s.sessions[key] = sess
	return nil
}

// PutBinding records a binding, rejecting conflicts on either direction.
func (s *MemoryStore) PutBinding(ctx context.Context, b core.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrKey := core.SessionKey(b.Wallet)
	if w, ok := s.byID[b.IDHash]; ok && w != b.Wallet {
		return core.ErrBindingConflict
	}
	if id, ok := s.byAddr[addrKey]; ok && id != b.IDHash {
		return core.ErrBindingConflict
	}

	s.byID[b.IDHash] = b.Wallet
	s.byAddr[addrKey] = b.IDHash
	return nil
}

// WalletByIdentity resolves the forward direction of the binding mirror.
func (s *MemoryStore) WalletByIdentity(ctx context.Context, idHash common.Hash) (common.Address, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.byID[idHash]
	return w, ok, nil
}

// IdentityByWallet resolves the reverse direction of the binding mirror.
func (s *MemoryStore) IdentityByWallet(ctx context.Context, wallet common.Address) (common.Hash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddr[core.SessionKey(wallet)]
	return id, ok, nil
}

// PutNonce stores the pending nonce for a conversation, replacing any prior
// unconsumed one.
func (s *MemoryStore) PutNonce(ctx context.Context, conversationID, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[conversationID] = memNonce{value: nonce, expiresAt: time.Now().Add(ttl)}
	return nil
}

// TakeNonce consumes the pending nonce.
func (s *MemoryStore) TakeNonce(ctx context.Context, conversationID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nonces[conversationID]
	if !ok {
		return "", false, nil
	}
	delete(s.nonces, conversationID)
	if time.Now().After(n.expiresAt) {
		return "", false, nil
	}
	return n.value, true, nil
}
