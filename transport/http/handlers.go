package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
)

const conversationCookie = "warden_conversation"

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService   *service.AuthService
	secureCookies bool
}

// NewAuthHandlers creates new auth handlers. secureCookies marks the
// conversation cookie Secure so it is never sent over plaintext; leave it off
// only for local development without TLS.
func NewAuthHandlers(authService *service.AuthService, secureCookies bool) *AuthHandlers {
	return &AuthHandlers{
		authService:   authService,
		secureCookies: secureCookies,
	}
}

// Authenticate handles the primary (identity token + PIN) authentication request
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req struct {
		IdentityToken string `json:"identity_token" binding:"required"`
		Pin           string `json:"pin" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.authService.Authenticate(c.Request.Context(), req.IdentityToken, req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"token":            res.Token,
		"binding_required": res.BindingRequired,
	}
	if !res.BindingRequired {
		resp["wallet"] = core.SessionKey(res.Wallet)
	}
	c.JSON(http.StatusOK, resp)
}

// Challenge issues a wallet-ownership challenge nonce for the caller's
// conversation. Re-requesting replaces any pending nonce.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	conv, _ := c.Cookie(conversationCookie)

	conv, nonce, err := h.authService.IssueChallenge(c.Request.Context(), conv)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(conversationCookie, conv, 0, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conv,
		"nonce":           nonce,
		"message":         core.ChallengeMessage(nonce),
	})
}

// VerifyOwnership handles the signed-challenge submission
func (h *AuthHandlers) VerifyOwnership(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		IDHash    string `json:"id_hash"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	conv, err := c.Cookie(conversationCookie)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active challenge conversation"})
		return
	}

	res, err := h.authService.VerifyOwnership(c.Request.Context(), conv, req.Address, req.Signature, req.IDHash)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet": core.SessionKey(res.Wallet),
		"token":  res.Token,
	})
}

// Policy returns the caller's current trust tier and the remedy it implies.
// The tier is recomputed from the session timestamps on every call.
func (h *AuthHandlers) Policy(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Principal not found in context"})
		return
	}

	tier, err := h.authService.Policy(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":   tier.String(),
		"remedy": tier.Remedy(),
	})
}

// ProtectedState is a tier-enforced resource: the enforcement middleware
// only lets fresh sessions through.
func (h *AuthHandlers) ProtectedState(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Principal not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":     core.SessionKey(principal.Wallet),
		"authorized": true,
	})
}

// Health reports process liveness.
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps engine error kinds to HTTP statuses. Ledger problems are
// deliberately distinct from credential problems so a caller can tell a
// wrong PIN from an unreachable chain.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{"error": "Identity not registered"})
	case errors.Is(err, core.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, core.ErrBadSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
	case errors.Is(err, core.ErrIdentityRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity hash required for first binding"})
	case errors.Is(err, core.ErrBindingConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Binding conflict"})
	case errors.Is(err, core.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ledger unavailable"})
	case errors.Is(err, core.ErrSetupFailed), errors.Is(err, core.ErrBindFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Ledger write not confirmed"})
	case errors.Is(err, core.ErrWalletProofRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Re-proof required", "remedy": core.TierWalletStale.Remedy()})
	case errors.Is(err, core.ErrFullProofRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Re-proof required", "remedy": core.TierFullStale.Remedy()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
