package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

const defaultFetchTimeout = 5 * time.Second

// keySet is an immutable snapshot of the issuer's verification keys.
type keySet struct {
	keys      map[string]jose.JSONWebKey
	fetchedAt time.Time
}

// KeyResolver looks up verification keys by kid. The key set is fetched
// lazily on the first miss and cached until the next miss or Invalidate.
// Readers never block: a refresh builds a new snapshot and swaps it in.
//
// Concurrent misses may each trigger a fetch; that redundant work is
// preferred over a lock that would stall unrelated requests.
type KeyResolver struct {
	src     KeySource
	timeout time.Duration
	now     func() time.Time
	onFetch func(error)

	snap    atomic.Pointer[keySet]
	fetches atomic.Int64
}

// KeyResolverOption configures a KeyResolver.
type KeyResolverOption func(*KeyResolver)

// WithFetchTimeout bounds each key set fetch.
func WithFetchTimeout(d time.Duration) KeyResolverOption {
	return func(r *KeyResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithFetchHook registers fn to be called after every fetch attempt with
// its outcome (nil on success).
func WithFetchHook(fn func(error)) KeyResolverOption {
	return func(r *KeyResolver) { r.onFetch = fn }
}

// NewKeyResolver returns a resolver reading keys from src.
func NewKeyResolver(src KeySource, opts ...KeyResolverOption) *KeyResolver {
	r := &KeyResolver{src: src, timeout: defaultFetchTimeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the public key registered under kid.
func (r *KeyResolver) Resolve(ctx context.Context, kid string) (jose.JSONWebKey, error) {
	if s := r.snap.Load(); s != nil {
		if k, ok := s.keys[kid]; ok {
			return k, nil
		}
	}

	s, err := r.refresh(ctx)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	if k, ok := s.keys[kid]; ok {
		return k, nil
	}
	return jose.JSONWebKey{}, errorf(KindKeyNotFound, "no signing key with kid %q", kid)
}

// Invalidate drops the cached key set; the next Resolve fetches again.
func (r *KeyResolver) Invalidate() { r.snap.Store(nil) }

// Fetches reports how many fetches have been attempted.
func (r *KeyResolver) Fetches() int64 { return r.fetches.Load() }

// FetchedAt reports when the cached key set was fetched, or the zero time.
func (r *KeyResolver) FetchedAt() time.Time {
	if s := r.snap.Load(); s != nil {
		return s.fetchedAt
	}
	return time.Time{}
}

func (r *KeyResolver) refresh(ctx context.Context) (*keySet, error) {
	r.fetches.Add(1)
	s, err := r.fetch(ctx)
	if r.onFetch != nil {
		r.onFetch(err)
	}
	if err != nil {
		return nil, err
	}
	r.snap.Store(s)
	return s, nil
}

func (r *KeyResolver) fetch(ctx context.Context) (*keySet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.src.FetchKeySet(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(KindKeyFetchFailure, fmt.Sprintf("key set fetch timed out after %s", r.timeout), err)
		}
		return nil, newError(KindKeyFetchFailure, "key set fetch failed", err)
	}
	keys, err := decodeKeySet(raw)
	if err != nil {
		return nil, newError(KindKeyFetchFailure, "key set document is invalid", err)
	}
	return &keySet{keys: keys, fetchedAt: r.now()}, nil
}

// decodeKeySet keeps the usable public signing keys of a JWK set. Entries
// with unknown key types, no kid, or an "enc" use are skipped rather than
// failing the whole document.
func decodeKeySet(raw []byte) (map[string]jose.JSONWebKey, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Keys == nil {
		return nil, errors.New(`missing "keys" member`)
	}

	keys := make(map[string]jose.JSONWebKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		var k jose.JSONWebKey
		if err := json.Unmarshal(entry, &k); err != nil {
			continue
		}
		if k.KeyID == "" || k.Use == "enc" {
			continue
		}
		if !k.IsPublic() {
			k = k.Public()
			if k.Key == nil {
				continue
			}
		}
		keys[k.KeyID] = k
	}
	return keys, nil
}
