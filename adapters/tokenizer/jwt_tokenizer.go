package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

const AudienceSession = "warden:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	ttl     time.Duration
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// NewJWTTokenizer creates a new JWT tokenizer.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, ttl time.Duration) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, ttl: ttl}
}

// PrincipalToToken converts a principal to a signed session token.
func (j *JWTTokenizer) PrincipalToToken(p core.Principal) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}
	if p.Bound() {
		claims.Subject = core.SessionKey(p.Wallet)
		claims.Wallet = core.SessionKey(p.Wallet)
	} else {
		claims.Subject = p.IDHash.Hex()
		claims.IDHash = p.IDHash.Hex()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToPrincipal parses and validates a session token.
func (j *JWTTokenizer) TokenToPrincipal(tokenStr string) (core.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.Principal{}, core.ErrTokenExpired
		}
		return core.Principal{}, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return core.Principal{}, core.ErrInvalidToken
	}

	var p core.Principal
	if claims.Wallet != "" {
		p.Wallet = common.HexToAddress(claims.Wallet)
	}
	if claims.IDHash != "" {
		p.IDHash = common.HexToHash(claims.IDHash)
	}
	if !p.Bound() && p.IDHash == (common.Hash{}) {
		return core.Principal{}, core.ErrInvalidToken
	}

	return p, nil
}
