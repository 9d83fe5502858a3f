package auth

import (
	"context"
	"net/http"

	"github.com/ggoodman/drinks-catalog-go/internal/jwtauth"
)

// Kind identifies why an authorization attempt failed.
type Kind = jwtauth.Kind

// Error is the typed failure returned by Gate. Inspect Kind, or compare with
// the sentinels below using errors.Is.
type Error = jwtauth.Error

const (
	KindMissingAuthHeader      = jwtauth.KindMissingAuthHeader
	KindMalformedAuthHeader    = jwtauth.KindMalformedAuthHeader
	KindMalformedToken         = jwtauth.KindMalformedToken
	KindUnsupportedAlgorithm   = jwtauth.KindUnsupportedAlgorithm
	KindKeyNotFound            = jwtauth.KindKeyNotFound
	KindKeyFetchFailure        = jwtauth.KindKeyFetchFailure
	KindInvalidSignature       = jwtauth.KindInvalidSignature
	KindTokenExpired           = jwtauth.KindTokenExpired
	KindIssuerMismatch         = jwtauth.KindIssuerMismatch
	KindAudienceMismatch       = jwtauth.KindAudienceMismatch
	KindPermissionClaimMissing = jwtauth.KindPermissionClaimMissing
	KindPermissionDenied       = jwtauth.KindPermissionDenied
	KindInternal               = jwtauth.KindInternal
)

// Sentinels for errors.Is matching by kind.
var (
	ErrMissingAuthHeader      = &Error{Kind: KindMissingAuthHeader}
	ErrMalformedAuthHeader    = &Error{Kind: KindMalformedAuthHeader}
	ErrMalformedToken         = &Error{Kind: KindMalformedToken}
	ErrUnsupportedAlgorithm   = &Error{Kind: KindUnsupportedAlgorithm}
	ErrKeyNotFound            = &Error{Kind: KindKeyNotFound}
	ErrKeyFetchFailure        = &Error{Kind: KindKeyFetchFailure}
	ErrInvalidSignature       = &Error{Kind: KindInvalidSignature}
	ErrTokenExpired           = &Error{Kind: KindTokenExpired}
	ErrIssuerMismatch         = &Error{Kind: KindIssuerMismatch}
	ErrAudienceMismatch       = &Error{Kind: KindAudienceMismatch}
	ErrPermissionClaimMissing = &Error{Kind: KindPermissionClaimMissing}
	ErrPermissionDenied       = &Error{Kind: KindPermissionDenied}
	ErrInternal               = &Error{Kind: KindInternal}
)

// KindOf returns the failure kind carried by err, or KindInternal for errors
// that did not come from this package.
func KindOf(err error) Kind { return jwtauth.KindOf(err) }

// UserInfo represents an authenticated principal.
// Implementations should be lightweight and safe for concurrent use.
type UserInfo interface {
	// UserID returns the token subject.
	UserID() string
	// Claims unmarshals the token payload into the provided struct reference.
	Claims(ref any) error
}

// Identity is the result of a successful authorization. It exists only for
// the request that produced it and is never cached.
type Identity struct {
	subject     string
	permissions jwtauth.Permissions
	claims      *jwtauth.Claims
}

var _ UserInfo = (*Identity)(nil)

func (i *Identity) UserID() string { return i.subject }

// Permissions returns the granted permissions, sorted.
func (i *Identity) Permissions() []string { return i.permissions.List() }

// HasPermission reports exact membership in the granted set.
func (i *Identity) HasPermission(p string) bool { return i.permissions.Has(p) }

func (i *Identity) Claims(ref any) error { return i.claims.Decode(ref) }

// Authorizer is the contract route handlers depend on.
type Authorizer interface {
	Authorize(ctx context.Context, authorization string, permission string) (*Identity, error)
	AuthorizeRequest(r *http.Request, permission string) (*Identity, error)
}

type identityKey struct{}

// WithIdentity stores id on ctx for downstream handlers.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok
}
