package auth

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures optional aspects of a Gate (algorithms, leeway, hooks,
// logging). Issuer and audience are formal arguments of the constructors.
type Option func(*settings)

type settings struct {
	sec        SecurityConfig
	logger     *slog.Logger
	httpClient *http.Client
	now        func() time.Time
	onDecision func(Kind)
	onFetch    func(error)
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" and HMAC
// algorithms are never allowed. Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) Option {
	return func(s *settings) { s.sec.AllowedAlgs = append([]string(nil), algs...) }
}

// WithAdditionalAudiences accepts extra "aud" values besides the primary one,
// typically for local development against a production tenant.
func WithAdditionalAudiences(auds ...string) Option {
	return func(s *settings) { s.sec.Audiences = append(s.sec.Audiences, auds...) }
}

// WithLeeway sets clock skew tolerance for exp and nbf. Defaults to zero.
func WithLeeway(d time.Duration) Option {
	return func(s *settings) { s.sec.Leeway = d }
}

// WithFetchTimeout bounds each JWK set fetch. Defaults to 5s.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *settings) { s.sec.FetchTimeout = d }
}

// WithHTTPClient sets the client used for discovery and JWK set fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger sets the logger used for authorization decisions. If not
// provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock overrides time.Now for exp/nbf checks.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithDecisionHook is called once per evaluation with the failure kind, or
// with an empty Kind on success.
func WithDecisionHook(fn func(Kind)) Option {
	return func(s *settings) { s.onDecision = fn }
}

// WithFetchHook is called after every JWK set fetch attempt.
func WithFetchHook(fn func(error)) Option {
	return func(s *settings) { s.onFetch = fn }
}
