package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the principal's identifiers.
// The trust tier is deliberately absent: it is recomputed from the session
// store on every authorization check.
type SessionClaims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wlt,omitempty"` // lowercased wallet address, once bound
	IDHash string `json:"idh,omitempty"` // identity hash, before binding
}
