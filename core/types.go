package core

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// UserRecord is the ledger's view of a registered identity.
type UserRecord struct {
	Exists      bool           // identity is registered on the ledger
	HasSecret   bool           // secret digest has been established
	BoundWallet common.Address // zero address means no binding yet
}

// Bound reports whether the record carries a wallet binding.
func (r UserRecord) Bound() bool {
	return r.BoundWallet != (common.Address{})
}

// Binding is the durable 1:1 association between an identity and a wallet.
type Binding struct {
	IDHash common.Hash
	Wallet common.Address
}

// Session tracks when a wallet identity last proved each factor.
// Zero timestamps mean the proof has never been presented.
type Session struct {
	Wallet           string    // lowercased wallet address, the session key
	LastFullAuthAt   time.Time // last successful primary-factor proof
	LastWalletAuthAt time.Time // last successful wallet-ownership proof
}

// Challenge is a single-use nonce scoped to one client conversation.
type Challenge struct {
	ConversationID string
	Nonce          string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// Principal identifies an authenticated caller. Wallet is set once a
// binding exists; before that only the identity hash is known.
type Principal struct {
	Wallet common.Address
	IDHash common.Hash
}

// Bound reports whether the principal is keyed by a wallet address.
func (p Principal) Bound() bool {
	return p.Wallet != (common.Address{})
}

// SessionKey returns the canonical session-store key for a wallet address.
func SessionKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

const challengeTemplate = "Warden ownership challenge: "

// ChallengeMessage reconstructs the canonical message a wallet signs to
// prove ownership. The template is fixed; only the nonce varies.
func ChallengeMessage(nonce string) string {
	return challengeTemplate + nonce
}
