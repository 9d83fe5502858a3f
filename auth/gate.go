package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ggoodman/drinks-catalog-go/internal/jwtauth"
)

const authorizationHeader = "Authorization"

// Gate is the single entry point protected operations call. It extracts the
// bearer token, parses it, verifies signature and claims, and checks the
// required permission, stopping at the first failure.
//
// A Gate is safe for concurrent use. Its only shared state is the signing
// key cache, which is read lock-free and replaced wholesale on refresh.
type Gate struct {
	sec        SecurityConfig
	keys       *jwtauth.KeyResolver
	validator  *jwtauth.Validator
	log        *slog.Logger
	onDecision func(Kind)
}

var _ Authorizer = (*Gate)(nil)

func newGate(s *settings) (*Gate, error) {
	s.sec.Normalize()
	if err := s.sec.Validate(); err != nil {
		return nil, err
	}
	src, err := s.keySource()
	if err != nil {
		return nil, err
	}

	keys := jwtauth.NewKeyResolver(src,
		jwtauth.WithFetchTimeout(s.sec.FetchTimeout),
		jwtauth.WithFetchHook(s.onFetch),
	)
	v, err := jwtauth.NewValidator(&jwtauth.Config{
		Issuer:      s.sec.Issuer,
		Audiences:   append([]string(nil), s.sec.Audiences...),
		AllowedAlgs: append([]string(nil), s.sec.AllowedAlgs...),
		Leeway:      s.sec.Leeway,
		Now:         s.now,
	}, keys)
	if err != nil {
		return nil, err
	}

	log := s.logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{sec: s.sec, keys: keys, validator: v, log: log, onDecision: s.onDecision}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", &Error{Kind: KindMissingAuthHeader, Description: "no authorization header"}
	}
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", &Error{Kind: KindMalformedAuthHeader, Description: "authorization header must use the Bearer scheme"}
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", &Error{Kind: KindMalformedAuthHeader, Description: "empty bearer token"}
	}
	if strings.ContainsAny(tok, " \t") {
		return "", &Error{Kind: KindMalformedAuthHeader, Description: "bearer token must not contain whitespace"}
	}
	return tok, nil
}

// Authorize evaluates the raw Authorization header value against permission.
// An empty header value is treated as a missing header.
func (g *Gate) Authorize(ctx context.Context, authorization string, permission string) (*Identity, error) {
	tok, err := BearerToken(authorization)
	if err != nil {
		return nil, g.fail(ctx, permission, err)
	}
	return g.AuthorizeToken(ctx, tok, permission)
}

// AuthorizeRequest evaluates the Authorization header of r. Repeated
// Authorization headers are rejected as malformed.
func (g *Gate) AuthorizeRequest(r *http.Request, permission string) (*Identity, error) {
	vals := r.Header.Values(authorizationHeader)
	switch {
	case len(vals) == 0:
		return nil, g.fail(r.Context(), permission, &Error{Kind: KindMissingAuthHeader, Description: "no authorization header"})
	case len(vals) > 1:
		return nil, g.fail(r.Context(), permission, &Error{Kind: KindMalformedAuthHeader, Description: "multiple authorization headers"})
	case strings.TrimSpace(vals[0]) == "":
		return nil, g.fail(r.Context(), permission, &Error{Kind: KindMalformedAuthHeader, Description: "empty authorization header"})
	}
	return g.Authorize(r.Context(), vals[0], permission)
}

// AuthorizeToken evaluates an already extracted bearer token.
func (g *Gate) AuthorizeToken(ctx context.Context, token string, permission string) (*Identity, error) {
	start := time.Now()
	if token == "" {
		return nil, g.fail(ctx, permission, &Error{Kind: KindMalformedAuthHeader, Description: "empty bearer token"})
	}

	parsed, err := jwtauth.Parse(token)
	if err != nil {
		return nil, g.fail(ctx, permission, err)
	}
	if err := g.validator.Validate(ctx, parsed); err != nil {
		return nil, g.fail(ctx, permission, err)
	}
	grant, err := jwtauth.Enforce(parsed.Claims, permission)
	if err != nil {
		return nil, g.fail(ctx, permission, err)
	}

	id := &Identity{subject: grant.Subject, permissions: grant.Permissions, claims: parsed.Claims}
	if g.onDecision != nil {
		g.onDecision("")
	}
	g.log.InfoContext(ctx, "auth.check.ok",
		slog.String("sub", id.subject),
		slog.String("permission", permission),
		slog.Duration("dur", time.Since(start)),
	)
	return id, nil
}

// fail normalizes err to *Error, records the decision and returns it. An
// *Error is passed through untouched so its kind is never lost.
func (g *Gate) fail(ctx context.Context, permission string, err error) error {
	ae := jwtauth.AsError(err)
	if g.onDecision != nil {
		g.onDecision(ae.Kind)
	}
	attrs := []any{
		slog.String("kind", string(ae.Kind)),
		slog.String("permission", permission),
		slog.String("err", ae.Error()),
	}
	switch ae.Kind {
	case KindKeyFetchFailure, KindInternal:
		g.log.WarnContext(ctx, "auth.check.err", attrs...)
	case KindMissingAuthHeader:
		g.log.InfoContext(ctx, "auth.check.missing", attrs...)
	default:
		g.log.InfoContext(ctx, "auth.check.fail", attrs...)
	}
	return ae
}

// InvalidateKeys drops the cached signing keys so the next evaluation
// fetches them again.
func (g *Gate) InvalidateKeys() { g.keys.Invalidate() }

// KeyFetches reports how many JWK set fetches this gate has attempted.
func (g *Gate) KeyFetches() int64 { return g.keys.Fetches() }

// SecurityConfig returns a copy of the effective configuration.
func (g *Gate) SecurityConfig() SecurityConfig { return g.sec.Copy() }
