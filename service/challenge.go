package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/warden/ports"
)

// ChallengeIssuer generates single-use nonces for wallet-ownership
// challenges. It is the only mutator of a conversation's nonce slot:
// issuing stores (and overwrites), verification consumes.
type ChallengeIssuer struct {
	store ports.ChallengeStore
	ttl   time.Duration
}

// NewChallengeIssuer creates a new challenge issuer.
func NewChallengeIssuer(store ports.ChallengeStore, ttl time.Duration) *ChallengeIssuer {
	return &ChallengeIssuer{store: store, ttl: ttl}
}

// Issue generates a fresh random nonce for the conversation, replacing any
// prior unconsumed one so a stale nonce can no longer be replayed. An empty
// conversationID starts a new conversation.
func (ci *ChallengeIssuer) Issue(ctx context.Context, conversationID string) (string, string, error) {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	if err := ci.store.PutNonce(ctx, conversationID, nonce, ci.ttl); err != nil {
		return "", "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return conversationID, nonce, nil
}

// Consume removes and returns the conversation's pending nonce. It succeeds
// at most once per issued nonce, regardless of the verification outcome.
func (ci *ChallengeIssuer) Consume(ctx context.Context, conversationID string) (string, bool, error) {
	nonce, found, err := ci.store.TakeNonce(ctx, conversationID)
	if err != nil {
		return "", false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return nonce, found, nil
}
