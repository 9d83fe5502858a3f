package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ggoodman/drinks-catalog-go/internal/jwtauth"
)

// SecurityConfig is the unified configuration describing how this resource
// validates bearer tokens: who issues them, who they are for, and where the
// issuer publishes its keys.
//
// A zero value is invalid; populate required fields then call NewGate, or use
// NewFromDiscovery to learn JWKSURL from the issuer.
type SecurityConfig struct {
	Issuer      string
	Audiences   []string
	AllowedAlgs []string // default: ["RS256"] if empty
	JWKSURL     string
	// JWKSFile reads keys from a local JWK set instead of JWKSURL.
	JWKSFile string

	Leeway       time.Duration // clock skew tolerance (default 0)
	FetchTimeout time.Duration // per JWK set fetch (default 5s)
}

// Normalize fills defaults.
func (c *SecurityConfig) Normalize() {
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = []string{"RS256"}
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.Leeway < 0 {
		c.Leeway = 0
	}
}

// Validate returns an error if required invariants are not met.
func (c SecurityConfig) Validate() error {
	if c.Issuer == "" {
		return errors.New("security: issuer required")
	}
	if len(c.Audiences) == 0 {
		return errors.New("security: at least one audience required")
	}
	for _, a := range c.Audiences {
		if a == "" {
			return errors.New("security: empty audience entry")
		}
	}
	for _, alg := range c.AllowedAlgs {
		if strings.EqualFold(alg, "none") || strings.HasPrefix(alg, "HS") {
			return fmt.Errorf("security: algorithm %q cannot be allowed", alg)
		}
	}
	if c.JWKSURL != "" && c.JWKSFile != "" {
		return errors.New("security: JWKSURL and JWKSFile are mutually exclusive")
	}
	return nil
}

// Copy returns a deep copy safe for mutation by the caller.
func (c SecurityConfig) Copy() SecurityConfig {
	dup := c
	dup.Audiences = append([]string(nil), c.Audiences...)
	dup.AllowedAlgs = append([]string(nil), c.AllowedAlgs...)
	return dup
}

// NewGate constructs a Gate from this configuration without performing OIDC
// discovery. Either JWKSURL or JWKSFile must be set.
func (c SecurityConfig) NewGate(opts ...Option) (*Gate, error) {
	s := &settings{sec: c.Copy()}
	for _, opt := range opts {
		opt(s)
	}
	return newGate(s)
}

func (s *settings) keySource() (jwtauth.KeySource, error) {
	switch {
	case s.sec.JWKSFile != "":
		return &jwtauth.FileKeySource{Path: s.sec.JWKSFile}, nil
	case s.sec.JWKSURL != "":
		client := s.httpClient
		if client == nil {
			client = http.DefaultClient
		}
		return &jwtauth.HTTPKeySource{URL: s.sec.JWKSURL, Client: client}, nil
	default:
		return nil, errors.New("security: JWKSURL or JWKSFile required")
	}
}
