package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config controls signature and claim validation.
type Config struct {
	Issuer string
	// Audiences lists every accepted "aud" value. A token passes when any of
	// its audiences appears here.
	Audiences   []string
	AllowedAlgs []string
	Leeway      time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config with the default algorithm allow-list and
// no clock skew tolerance.
func DefaultConfig() *Config {
	return &Config{AllowedAlgs: []string{"RS256"}}
}

// ErrAlgNotAllowed is returned by NewValidator for algorithms that can never
// be placed on the allow-list.
var ErrAlgNotAllowed = errors.New("jwtauth: algorithm cannot be allowed")

// Validator verifies signatures and registered claims of parsed tokens.
type Validator struct {
	issuer    string
	audiences map[string]struct{}
	methods   map[string]jwt.SigningMethod
	leeway    time.Duration
	now       func() time.Time
	keys      *KeyResolver
}

// NewValidator checks cfg and binds it to a key resolver.
func NewValidator(cfg *Config, keys *KeyResolver) (*Validator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if len(cfg.Audiences) == 0 {
		return nil, errors.New("at least one expected audience required")
	}
	if keys == nil {
		return nil, errors.New("key resolver is required")
	}
	algs := cfg.AllowedAlgs
	if len(algs) == 0 {
		algs = DefaultConfig().AllowedAlgs
	}

	methods := make(map[string]jwt.SigningMethod, len(algs))
	for _, alg := range algs {
		if strings.EqualFold(alg, "none") || strings.HasPrefix(alg, "HS") {
			// Symmetric and unsigned algorithms make no sense against a
			// published public key set.
			return nil, fmt.Errorf("%w: %s", ErrAlgNotAllowed, alg)
		}
		m := jwt.GetSigningMethod(alg)
		if m == nil {
			return nil, fmt.Errorf("unknown signing algorithm %q", alg)
		}
		methods[alg] = m
	}

	auds := make(map[string]struct{}, len(cfg.Audiences))
	for _, a := range cfg.Audiences {
		if a == "" {
			return nil, errors.New("empty audience entry")
		}
		auds[a] = struct{}{}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Validator{
		issuer:    cfg.Issuer,
		audiences: auds,
		methods:   methods,
		leeway:    cfg.Leeway,
		now:       now,
		keys:      keys,
	}, nil
}

// Validate runs, in order: algorithm allow-list, key resolution, signature
// verification, then exp/nbf, issuer and audience checks. Claims are not
// consulted until the signature has verified.
func (v *Validator) Validate(ctx context.Context, p *Parsed) error {
	method, ok := v.methods[p.Header.Alg]
	if !ok {
		return errorf(KindUnsupportedAlgorithm, "algorithm %q is not allowed", p.Header.Alg)
	}

	jwk, err := v.keys.Resolve(ctx, p.Header.Kid)
	if err != nil {
		return err
	}
	if jwk.Algorithm != "" && jwk.Algorithm != p.Header.Alg {
		return errorf(KindInvalidSignature, "key %q is for %s, token declares %s", p.Header.Kid, jwk.Algorithm, p.Header.Alg)
	}
	if err := method.Verify(string(p.SigningInput), p.Signature, jwk.Key); err != nil {
		return newError(KindInvalidSignature, "signature verification failed", err)
	}

	c := p.Claims
	now := v.now()
	if c.ExpiresAt == nil {
		return newError(KindMalformedToken, "token is missing exp", nil)
	}
	if !now.Before(c.ExpiresAt.Add(v.leeway)) {
		return errorf(KindTokenExpired, "token expired at %s", c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if c.NotBefore != nil && now.Add(v.leeway).Before(c.NotBefore.Time) {
		return errorf(KindTokenExpired, "token not valid before %s", c.NotBefore.UTC().Format(time.RFC3339))
	}

	if c.Issuer != v.issuer {
		return errorf(KindIssuerMismatch, "issuer %q is not trusted", c.Issuer)
	}
	if !v.audienceAccepted(c.Audience) {
		return newError(KindAudienceMismatch, "token audience does not include this API", nil)
	}
	if c.Subject == "" {
		return newError(KindMalformedToken, "token is missing sub", nil)
	}
	return nil
}

func (v *Validator) audienceAccepted(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if _, ok := v.audiences[a]; ok {
			return true
		}
	}
	return false
}
