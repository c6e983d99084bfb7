package core

import "errors"

var (
	// ErrBadRequest is returned for missing or malformed input, including
	// verification attempts without an active challenge nonce.
	ErrBadRequest = errors.New("bad request")

	// ErrNotRegistered is returned when the identity is unknown to the ledger.
	ErrNotRegistered = errors.New("identity not registered")

	// ErrInvalidCredentials is returned when the secret digest does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrBadSignature is returned when the recovered signer does not match
	// the claimed address.
	ErrBadSignature = errors.New("signature does not match claimed address")

	// ErrBindingConflict is returned when a bind would violate the
	// one-identity-one-wallet invariant.
	ErrBindingConflict = errors.New("binding conflict")

	// ErrIdentityRequired is returned when a first bind is attempted without
	// a claimed identity hash.
	ErrIdentityRequired = errors.New("identity hash required for first binding")

	// ErrLedgerUnavailable is returned when a ledger round-trip fails for
	// transport reasons. It is never coerced into ErrInvalidCredentials.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrSetupFailed is returned when the first-time secret write did not
	// confirm on the ledger.
	ErrSetupFailed = errors.New("secret setup not confirmed")

	// ErrBindFailed is returned when the wallet binding write did not
	// confirm on the ledger.
	ErrBindFailed = errors.New("wallet binding not confirmed")

	// ErrWalletProofRequired is returned by authorization checks when the
	// session is wallet-stale and needs a fresh ownership proof.
	ErrWalletProofRequired = errors.New("wallet ownership re-proof required")

	// ErrFullProofRequired is returned by authorization checks when the
	// session is fully stale and needs a primary-factor re-proof.
	ErrFullProofRequired = errors.New("full re-authentication required")

	// ErrInvalidToken is returned when a session token fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a session token has expired.
	ErrTokenExpired = errors.New("token has expired")
)
