package ports

import "github.com/layer-3/warden/core"

// Tokenizer converts between an authenticated principal and its session
// token. The token identifies who the caller is; it never carries a trust
// tier — tiers are recomputed from the session store on every check.
type Tokenizer interface {
	PrincipalToToken(p core.Principal) (string, error)
	TokenToPrincipal(token string) (core.Principal, error)
}
