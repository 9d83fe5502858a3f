// Package authtest provides an in-process OIDC issuer for tests. It serves a
// discovery document and a JWK set and mints RS256 tokens signed with the key
// it publishes.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	discoveryPath = "/.well-known/openid-configuration"
	jwksPath      = "/.well-known/jwks.json"
)

// Issuer is a fake authorization server.
type Issuer struct {
	srv      *httptest.Server
	audience string

	mu      sync.RWMutex
	key     *rsa.PrivateKey
	kid     string
	gen     int
	failing bool

	fetches atomic.Int64
}

// NewIssuer starts an issuer minting tokens for audience. It is closed when
// the test ends.
func NewIssuer(t testing.TB, audience string) *Issuer {
	t.Helper()
	iss := &Issuer{audience: audience}
	iss.rotate(t)

	mux := http.NewServeMux()
	mux.HandleFunc(discoveryPath, iss.handleDiscovery)
	mux.HandleFunc(jwksPath, iss.handleJWKS)
	iss.srv = httptest.NewServer(mux)
	t.Cleanup(iss.srv.Close)
	return iss
}

// URL is the issuer identifier, as found in "iss".
func (i *Issuer) URL() string { return i.srv.URL }

// JWKSURL is where the key set is published.
func (i *Issuer) JWKSURL() string { return i.srv.URL + jwksPath }

// Client returns an HTTP client for the issuer's server.
func (i *Issuer) Client() *http.Client { return i.srv.Client() }

// Audience is the default "aud" of minted tokens.
func (i *Issuer) Audience() string { return i.audience }

// KeyID is the kid of the current signing key.
func (i *Issuer) KeyID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.kid
}

// Fetches reports how many times the JWK set was requested.
func (i *Issuer) Fetches() int64 { return i.fetches.Load() }

// SetFailing makes the JWK set endpoint answer 500 while on is true.
func (i *Issuer) SetFailing(on bool) {
	i.mu.Lock()
	i.failing = on
	i.mu.Unlock()
}

// Rotate replaces the signing key. The old key is no longer published.
func (i *Issuer) Rotate(t testing.TB) {
	t.Helper()
	i.rotate(t)
}

func (i *Issuer) rotate(t testing.TB) {
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	i.mu.Lock()
	i.gen++
	i.key = pk
	i.kid = "key-" + strconv.Itoa(i.gen)
	i.mu.Unlock()
}

// Claims returns a valid claim set for sub that expires in an hour and grants
// perms through the "permissions" claim.
func (i *Issuer) Claims(sub string, perms ...string) jwt.MapClaims {
	now := time.Now()
	if perms == nil {
		perms = []string{}
	}
	return jwt.MapClaims{
		"iss":         i.URL(),
		"aud":         i.audience,
		"sub":         sub,
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"permissions": perms,
	}
}

// Token signs claims with the current key.
func (i *Issuer) Token(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	i.mu.RLock()
	key, kid := i.key, i.kid
	i.mu.RUnlock()
	return SignRS256(t, key, kid, claims)
}

// SignRS256 signs claims with key under kid.
func SignRS256(t testing.TB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// KeySetJSON returns the JWK set document currently published.
func (i *Issuer) KeySetJSON() []byte {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return KeySet(&i.key.PublicKey, i.kid)
}

// KeySet renders a single-key JWK set document.
func KeySet(pub *rsa.PublicKey, kid string) []byte {
	b, _ := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       pub,
		KeyID:     kid,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
	return b
}

func (i *Issuer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                i.URL(),
		"jwks_uri":                              i.JWKSURL(),
		"authorization_endpoint":                i.URL() + "/authorize",
		"token_endpoint":                        i.URL() + "/oauth/token",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (i *Issuer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	i.fetches.Add(1)
	i.mu.RLock()
	failing := i.failing
	i.mu.RUnlock()
	if failing {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(i.KeySetJSON())
}
