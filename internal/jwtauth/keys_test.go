package jwtauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

func TestKeyResolver_LazyFetchAndCache(t *testing.T) {
	pk := genRSA(t)
	m := newMockJWKS(t, jwksJSON(t, map[string]*rsa.PrivateKey{testKid: pk}))
	r := NewKeyResolver(m.source())

	if m.fetches.Load() != 0 {
		t.Fatal("resolver fetched before first use")
	}
	for i := 0; i < 3; i++ {
		k, err := r.Resolve(context.Background(), testKid)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if _, ok := k.Key.(*rsa.PublicKey); !ok {
			t.Fatalf("key type %T", k.Key)
		}
	}
	if got := m.fetches.Load(); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}
	if r.Fetches() != 1 {
		t.Fatalf("resolver fetch count = %d", r.Fetches())
	}
	if r.FetchedAt().IsZero() {
		t.Fatal("FetchedAt not recorded")
	}
}

func TestKeyResolver_UnknownKidAfterFreshFetch(t *testing.T) {
	m := newMockJWKS(t, jwksJSON(t, map[string]*rsa.PrivateKey{testKid: genRSA(t)}))
	r := NewKeyResolver(m.source())

	_, err := r.Resolve(context.Background(), "rotated-away")
	wantKind(t, err, KindKeyNotFound)

	// Negative lookups are not cached: each miss goes back to the issuer.
	_, err = r.Resolve(context.Background(), "rotated-away")
	wantKind(t, err, KindKeyNotFound)
	if got := m.fetches.Load(); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
}

func TestKeyResolver_RotationSelfHeals(t *testing.T) {
	oldKey, newKey := genRSA(t), genRSA(t)
	m := newMockJWKS(t, jwksJSON(t, map[string]*rsa.PrivateKey{"old": oldKey}))
	r := NewKeyResolver(m.source())

	if _, err := r.Resolve(context.Background(), "old"); err != nil {
		t.Fatalf("resolve old: %v", err)
	}
	m.body.Store(jwksJSON(t, map[string]*rsa.PrivateKey{"new": newKey}))

	k, err := r.Resolve(context.Background(), "new")
	if err != nil {
		t.Fatalf("resolve new after rotation: %v", err)
	}
	if k.Key.(*rsa.PublicKey).N.Cmp(newKey.PublicKey.N) != 0 {
		t.Fatal("resolved the wrong key")
	}
	// The refresh replaced the whole set.
	_, err = r.Resolve(context.Background(), "old")
	wantKind(t, err, KindKeyNotFound)
}

func TestKeyResolver_FetchFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *mockJWKS)
	}{
		{name: "server error", setup: func(m *mockJWKS) { m.status.Store(http.StatusInternalServerError) }},
		{name: "not json", setup: func(m *mockJWKS) { m.body.Store([]byte("<html>")) }},
		{name: "no keys member", setup: func(m *mockJWKS) { m.body.Store([]byte(`{"issuer":"x"}`)) }},
		{name: "timeout", setup: func(m *mockJWKS) { m.delay.Store(int64(time.Second)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockJWKS(t, jwksJSON(t, map[string]*rsa.PrivateKey{testKid: genRSA(t)}))
			tt.setup(m)
			r := NewKeyResolver(m.source(), WithFetchTimeout(50*time.Millisecond))
			_, err := r.Resolve(context.Background(), testKid)
			wantKind(t, err, KindKeyFetchFailure)
		})
	}
}

func TestKeyResolver_UnreachableEndpoint(t *testing.T) {
	m := newMockJWKS(t, []byte(`{"keys":[]}`))
	src := m.source()
	m.srv.Close()

	var hookErr error
	r := NewKeyResolver(src, WithFetchHook(func(err error) { hookErr = err }))
	_, err := r.Resolve(context.Background(), testKid)
	wantKind(t, err, KindKeyFetchFailure)
	if hookErr == nil {
		t.Fatal("fetch hook not told about the failure")
	}
}

func TestKeyResolver_Invalidate(t *testing.T) {
	m := newMockJWKS(t, jwksJSON(t, map[string]*rsa.PrivateKey{testKid: genRSA(t)}))
	r := NewKeyResolver(m.source())
	if _, err := r.Resolve(context.Background(), testKid); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r.Invalidate()
	if !r.FetchedAt().IsZero() {
		t.Fatal("snapshot survived Invalidate")
	}
	if _, err := r.Resolve(context.Background(), testKid); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := m.fetches.Load(); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
}

func TestKeyResolver_ConcurrentReadersDuringRefresh(t *testing.T) {
	m := newMockJWKS(t, jwksJSON(t, map[string]*rsa.PrivateKey{testKid: genRSA(t)}))
	r := NewKeyResolver(m.source())
	if _, err := r.Resolve(context.Background(), testKid); err != nil {
		t.Fatalf("warm: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), testKid); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			// Misses force refreshes that swap snapshots under the readers.
			_, _ = r.Resolve(context.Background(), "missing")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("reader failed during refresh: %v", err)
	}
}

func TestDecodeKeySet_SkipsUnusableEntries(t *testing.T) {
	rsaKey := genRSA(t)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("gen ec: %v", err)
	}
	entries := []any{
		jose.JSONWebKey{Key: &rsaKey.PublicKey, KeyID: "rsa", Algorithm: "RS256", Use: "sig"},
		jose.JSONWebKey{Key: ecKey, KeyID: "ec-private", Algorithm: "ES256", Use: "sig"},
		jose.JSONWebKey{Key: &rsaKey.PublicKey, KeyID: "", Algorithm: "RS256"},
		jose.JSONWebKey{Key: &rsaKey.PublicKey, KeyID: "enc", Use: "enc"},
		jose.JSONWebKey{Key: []byte("shared-secret"), KeyID: "hmac", Algorithm: "HS256"},
		map[string]string{"kty": "made-up", "kid": "weird"},
	}
	raw, err := json.Marshal(map[string]any{"keys": entries})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	keys, err := decodeKeySet(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("kept %d keys, want 2: %v", len(keys), keys)
	}
	if _, ok := keys["rsa"]; !ok {
		t.Fatal("rsa key dropped")
	}
	ec, ok := keys["ec-private"]
	if !ok {
		t.Fatal("ec key dropped")
	}
	if _, ok := ec.Key.(*ecdsa.PublicKey); !ok {
		t.Fatalf("ec key should be reduced to its public half, got %T", ec.Key)
	}
}

func TestFileKeySource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jwks.json")
	if err := os.WriteFile(path, jwksJSON(t, map[string]*rsa.PrivateKey{testKid: genRSA(t)}), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewKeyResolver(&FileKeySource{Path: path})
	if _, err := r.Resolve(context.Background(), testKid); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	missing := NewKeyResolver(&FileKeySource{Path: filepath.Join(dir, "nope.json")})
	_, err := missing.Resolve(context.Background(), testKid)
	wantKind(t, err, KindKeyFetchFailure)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("underlying cause lost: %v", err)
	}
}
