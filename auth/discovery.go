package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// NewFromDiscovery returns a Gate for tokens minted by issuer, finding the
// issuer's JWK set through OpenID Connect discovery
// (/.well-known/openid-configuration).
//
// Required:
//   - issuer:   authorization server issuer URL, exactly as it appears in "iss"
//   - audience: expected audience ("aud") claim, typically the API identifier
//
// Remaining validation knobs (algs, leeway, timeouts) are configured via
// functional options. Only discovery happens here; keys are fetched lazily
// on first use.
func NewFromDiscovery(ctx context.Context, issuer string, audience string, opts ...Option) (*Gate, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	s := &settings{sec: SecurityConfig{Issuer: issuer, Audiences: []string{audience}}}
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient != nil {
		ctx = oidc.ClientContext(ctx, s.httpClient)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		JwksURI string   `json:"jwks_uri"`
		Algs    []string `json:"id_token_signing_alg_values_supported"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("discovery incomplete: missing jwks_uri")
	}
	s.sec.JWKSURL = meta.JwksURI
	s.sec.JWKSFile = ""
	return newGate(s)
}
