package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// AuthService handles the identity-binding and tiered re-authentication
// flows: primary (tag + PIN) authentication against the ledger, wallet
// ownership proofs over issued challenges, and per-request tier computation.
type AuthService struct {
	ledger     ports.IdentityLedger
	sessions   ports.SessionStore
	bindings   *BindingResolver
	challenges *ChallengeIssuer
	recovery   ports.SignatureRecovery
	tokenizer  ports.Tokenizer
	eventPub   ports.EventPublisher
	logger     *zap.Logger

	windows    core.Windows
	setupLocks *keyedMutex

	// now is swappable for tests.
	now func() time.Time
}

// AuthResult is the outcome of a successful authentication step.
type AuthResult struct {
	Wallet          common.Address // zero until a binding exists
	BindingRequired bool           // caller's next step is wallet binding
	Token           string         // session token identifying the principal
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	ledger ports.IdentityLedger,
	sessions ports.SessionStore,
	bindings *BindingResolver,
	challenges *ChallengeIssuer,
	recovery ports.SignatureRecovery,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	windows core.Windows,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		ledger:     ledger,
		sessions:   sessions,
		bindings:   bindings,
		challenges: challenges,
		recovery:   recovery,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		windows:    windows,
		setupLocks: newKeyedMutex(),
		now:        time.Now,
		logger:     logger,
	}
}

// Authenticate runs the ledger-backed primary authentication flow for a raw
// identity token and PIN. When the identity has no secret yet this is the
// one-time trust-on-first-use establishment; afterwards the secret digest is
// verified against the ledger. With an established binding, a successful
// primary proof refreshes both session timestamps: the ledger-verified
// primary factor is at least as strong a proof as a wallet signature. This
// is a deliberate policy choice, not an accident.
func (s *AuthService) Authenticate(ctx context.Context, identityToken, pin string) (*AuthResult, error) {
	if identityToken == "" || pin == "" {
		return nil, fmt.Errorf("%w: identity token and pin are required", core.ErrBadRequest)
	}

	idHash := core.HashCredential(identityToken)
	secretHash := core.HashCredential(pin)

	// Serialize per identity so concurrent first-time setups cannot both
	// take the setup path; the loser re-reads the ledger and verifies.
	unlock := s.setupLocks.Lock("setup:" + idHash.Hex())
	defer unlock()

	rec, err := s.ledger.GetUser(ctx, idHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	if !rec.Exists {
		return nil, core.ErrNotRegistered
	}

	if !rec.HasSecret {
		if err := s.ledger.SetSecretFirstTime(ctx, idHash, secretHash); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSetupFailed, err)
		}
		s.logger.Info("secret established on first use", zap.String("id_hash", idHash.Hex()))
	} else {
		ok, err := s.ledger.VerifySecret(ctx, idHash, secretHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
		}
		if !ok {
			return nil, core.ErrInvalidCredentials
		}
	}

	if !rec.Bound() {
		// No wallet-keyed session exists to refresh; the caller's next step
		// is wallet binding.
		token, err := s.tokenizer.PrincipalToToken(core.Principal{IDHash: idHash})
		if err != nil {
			return nil, fmt.Errorf("failed to issue session token: %w", err)
		}
		return &AuthResult{BindingRequired: true, Token: token}, nil
	}

	wallet := rec.BoundWallet
	s.bindings.Mirror(ctx, core.Binding{IDHash: idHash, Wallet: wallet})

	if err := s.sessions.RefreshFull(ctx, core.SessionKey(wallet), s.now()); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if err := s.eventPub.PublishAuthenticated(ctx, wallet, "primary"); err != nil {
		s.logger.Warn("failed to publish authenticated event", zap.Error(err))
	}

	token, err := s.tokenizer.PrincipalToToken(core.Principal{Wallet: wallet, IDHash: idHash})
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("primary authentication succeeded",
		zap.String("id_hash", idHash.Hex()),
		zap.String("wallet", core.SessionKey(wallet)),
	)
	return &AuthResult{Wallet: wallet, Token: token}, nil
}

// IssueChallenge generates a fresh ownership challenge for the conversation.
func (s *AuthService) IssueChallenge(ctx context.Context, conversationID string) (string, string, error) {
	return s.challenges.Issue(ctx, conversationID)
}

// VerifyOwnership validates a signed challenge. The nonce is consumed on
// first touch regardless of the outcome, so neither a failed attempt nor a
// replay can reuse it. A known wallet gets a wallet-timestamp refresh; an
// unknown one takes the first-bind path, which requires the caller's
// identity hash and counts as proof of both factors. A wallet the mirror has
// never seen but the ledger already binds is a refresh, not a first bind:
// only a binding actually created here earns the full-proof timestamp.
func (s *AuthService) VerifyOwnership(ctx context.Context, conversationID, address, signature, claimedIDHash string) (*AuthResult, error) {
	if conversationID == "" || address == "" || signature == "" {
		return nil, fmt.Errorf("%w: conversation, address and signature are required", core.ErrBadRequest)
	}

	nonce, found, err := s.challenges.Consume(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: no active challenge for this conversation", core.ErrBadRequest)
	}

	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: malformed wallet address", core.ErrBadRequest)
	}
	claimed := common.HexToAddress(address)

	sig, err := decodeSignature(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBadRequest, err)
	}

	recovered, err := s.recovery.RecoverSigner([]byte(core.ChallengeMessage(nonce)), sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBadSignature, err)
	}
	// The crux of the protocol: reject unless the recovered signer equals
	// the claimed address.
	if recovered != claimed {
		return nil, core.ErrBadSignature
	}

	idHash, bound, err := s.bindings.IdentityFor(ctx, claimed)
	if err != nil {
		return nil, err
	}

	if bound {
		// Refresh: the binding is untouched and only the wallet-proof
		// timestamp advances.
		if err := s.sessions.RefreshWallet(ctx, core.SessionKey(claimed), s.now()); err != nil {
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}

		if err := s.eventPub.PublishAuthenticated(ctx, claimed, "wallet"); err != nil {
			s.logger.Warn("failed to publish authenticated event", zap.Error(err))
		}

		token, err := s.tokenizer.PrincipalToToken(core.Principal{Wallet: claimed, IDHash: idHash})
		if err != nil {
			return nil, fmt.Errorf("failed to issue session token: %w", err)
		}
		return &AuthResult{Wallet: claimed, Token: token}, nil
	}

	// First bind.
	if claimedIDHash == "" {
		return nil, core.ErrIdentityRequired
	}
	parsedID, err := parseIDHash(claimedIDHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBadRequest, err)
	}

	created, err := s.bindings.Bind(ctx, parsedID, claimed)
	if err != nil {
		return nil, err
	}

	if !created {
		// The ledger already carried this binding and the mirror was cold.
		// The signature only proves the wallet factor, same as any refresh.
		if err := s.sessions.RefreshWallet(ctx, core.SessionKey(claimed), s.now()); err != nil {
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}

		if err := s.eventPub.PublishAuthenticated(ctx, claimed, "wallet"); err != nil {
			s.logger.Warn("failed to publish authenticated event", zap.Error(err))
		}

		token, err := s.tokenizer.PrincipalToToken(core.Principal{Wallet: claimed, IDHash: parsedID})
		if err != nil {
			return nil, fmt.Errorf("failed to issue session token: %w", err)
		}
		return &AuthResult{Wallet: claimed, Token: token}, nil
	}

	// First binding proves both factors.
	if err := s.sessions.RefreshFull(ctx, core.SessionKey(claimed), s.now()); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if err := s.eventPub.PublishBound(ctx, parsedID, claimed); err != nil {
		s.logger.Warn("failed to publish bound event", zap.Error(err))
	}

	token, err := s.tokenizer.PrincipalToToken(core.Principal{Wallet: claimed, IDHash: parsedID})
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &AuthResult{Wallet: claimed, Token: token}, nil
}

// ParseToken validates a session token and returns its principal.
func (s *AuthService) ParseToken(token string) (core.Principal, error) {
	return s.tokenizer.TokenToPrincipal(token)
}

// Policy computes the principal's current trust tier. An unbound principal
// or a wallet with no session record is full-stale: absence of trust state
// is the maximum-distrust state.
func (s *AuthService) Policy(ctx context.Context, p core.Principal) (core.Tier, error) {
	if !p.Bound() {
		return core.TierFullStale, nil
	}

	sess, found, err := s.sessions.GetSession(ctx, core.SessionKey(p.Wallet))
	if err != nil {
		return core.TierFullStale, fmt.Errorf("failed to read session: %w", err)
	}
	if !found {
		return core.TierFullStale, nil
	}

	return core.ComputeTier(s.now(), sess.LastFullAuthAt, sess.LastWalletAuthAt, s.windows), nil
}

// Authorize grants access on a fresh tier and otherwise reports which
// re-proof the caller must present.
func (s *AuthService) Authorize(ctx context.Context, p core.Principal) error {
	tier, err := s.Policy(ctx, p)
	if err != nil {
		return err
	}

	switch tier {
	case core.TierFresh:
		return nil
	case core.TierWalletStale:
		return core.ErrWalletProofRequired
	default:
		return core.ErrFullProofRequired
	}
}

func decodeSignature(sig string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		return nil, fmt.Errorf("malformed signature hex: %v", err)
	}
	return raw, nil
}

func parseIDHash(s string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("identity hash must be 32 bytes")
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return common.Hash{}, fmt.Errorf("malformed identity hash: %v", err)
	}
	return common.HexToHash(s), nil
}
