package jwtauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://issuer.example.com/"
	testAudience = "drinks"
	testKid      = "test-key"
)

var testNow = time.Unix(1_700_000_000, 0)

type mockJWKS struct {
	srv     *httptest.Server
	body    atomic.Value // []byte
	status  atomic.Int32
	delay   atomic.Int64
	fetches atomic.Int64
}

func newMockJWKS(t *testing.T, keysJSON []byte) *mockJWKS {
	t.Helper()
	m := &mockJWKS{}
	m.body.Store(keysJSON)
	m.status.Store(http.StatusOK)
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.fetches.Add(1)
		if d := time.Duration(m.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(m.status.Load()))
		_, _ = w.Write(m.body.Load().([]byte))
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockJWKS) source() *HTTPKeySource {
	return &HTTPKeySource{URL: m.srv.URL, Client: m.srv.Client()}
}

func genRSA(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return pk
}

func jwksJSON(t *testing.T, keys map[string]*rsa.PrivateKey) []byte {
	t.Helper()
	set := jose.JSONWebKeySet{}
	for kid, pk := range keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"})
	}
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return b
}

func signToken(t *testing.T, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":         testIssuer,
		"sub":         "auth0|barista",
		"aud":         testAudience,
		"exp":         testNow.Add(time.Hour).Unix(),
		"iat":         testNow.Unix(),
		"permissions": []string{"get:drinks-detail", "post:drinks"},
	}
}

func newTestValidator(t *testing.T, src KeySource) (*Validator, *KeyResolver) {
	t.Helper()
	keys := NewKeyResolver(src, WithFetchTimeout(2*time.Second))
	v, err := NewValidator(&Config{
		Issuer:      testIssuer,
		Audiences:   []string{testAudience},
		AllowedAlgs: []string{"RS256"},
		Now:         func() time.Time { return testNow },
	}, keys)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v, keys
}

func parseAndValidate(t *testing.T, v *Validator, tok string) error {
	t.Helper()
	p, err := Parse(tok)
	if err != nil {
		return err
	}
	return v.Validate(context.Background(), p)
}

func wantKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s failure, got nil", want)
	}
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("want *Error of kind %s, got %T: %v", want, err, err)
	}
	if ae.Kind != want {
		t.Fatalf("want kind %s, got %s (%v)", want, ae.Kind, err)
	}
}
