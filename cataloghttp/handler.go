// Package cataloghttp exposes a catalog.Store over HTTP. Read access to the
// short listing is public; every other route requires a bearer token carrying
// the route's permission.
package cataloghttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/drinks-catalog-go/auth"
	"github.com/ggoodman/drinks-catalog-go/catalog"
	"github.com/ggoodman/drinks-catalog-go/internal/logctx"
	"github.com/ggoodman/drinks-catalog-go/internal/wellknown"
)

// Permissions required by the protected routes.
const (
	PermGetDrinksDetail = "get:drinks-detail"
	PermPostDrinks      = "post:drinks"
	PermPatchDrinks     = "patch:drinks"
	PermDeleteDrinks    = "delete:drinks"
)

const (
	wwwAuthenticateHeader = "WWW-Authenticate"
	maxBodyBytes          = 1 << 20
)

var jsonMediaType = contenttype.NewMediaType("application/json")

var statusMessages = map[int]string{
	http.StatusBadRequest:           "bad request",
	http.StatusNotFound:             "resource not found",
	http.StatusConflict:             "conflict",
	http.StatusUnsupportedMediaType: "unsupported media type",
	http.StatusUnprocessableEntity:  "unprocessable",
	http.StatusInternalServerError:  "internal error",
}

// Handler routes catalog requests.
type Handler struct {
	log     *slog.Logger
	store   catalog.Store
	authz   auth.Authorizer
	metrics *Metrics
	realm   string
	prm     *wellknown.ProtectedResourceMetadata
	mux     *http.ServeMux
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records request metrics and serves them on GET /metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges.
func WithRealm(realm string) Option {
	return func(h *Handler) { h.realm = realm }
}

// WithProtectedResource publishes RFC 9728 metadata for resource, the public
// URL of this API, naming the issuer and key set from sec.
func WithProtectedResource(resource string, sec auth.SecurityConfig) Option {
	return func(h *Handler) {
		doc := wellknown.NewProtectedResourceMetadata(resource, sec.Issuer, sec.JWKSURL, Permissions())
		doc.ResourceName = "Drinks catalog"
		h.prm = &doc
	}
}

// Permissions lists every permission a route can require.
func Permissions() []string {
	return []string{PermGetDrinksDetail, PermPostDrinks, PermPatchDrinks, PermDeleteDrinks}
}

// New constructs a Handler.
//
// Required:
//   - store: where drinks live
//   - authz: evaluates bearer tokens for protected routes
func New(store catalog.Store, authz auth.Authorizer, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if authz == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	h := &Handler{store: store, authz: authz, log: slog.Default(), realm: "drinks"}
	for _, opt := range opts {
		opt(h)
	}
	h.log = slog.New(logctx.Handler{Handler: h.log.Handler()})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /drinks", h.handleListDrinks)
	mux.HandleFunc("GET /drinks-detail", h.handleListDrinksDetail)
	mux.HandleFunc("POST /drinks", h.handleCreateDrink)
	mux.HandleFunc("PATCH /drinks/{id}", h.handleUpdateDrink)
	mux.HandleFunc("DELETE /drinks/{id}", h.handleDeleteDrink)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	if h.prm != nil {
		mux.HandleFunc("GET "+wellknown.ProtectedResourcePath, h.handleGetProtectedResourceMetadata)
	}
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r = r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	}))
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)

	if h.metrics != nil {
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		h.metrics.observeRequest(route, rec.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// authorize evaluates the request against permission. On failure it writes
// the error response and returns nil.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, permission string) *auth.Identity {
	id, err := h.authz.AuthorizeRequest(r, permission)
	if err != nil {
		h.writeAuthError(w, r, permission, err)
		return nil
	}
	return id
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, permission string, err error) {
	kind := auth.KindOf(err)
	c := auth.ChallengeFor(h.realm, err, permission)
	if c.WWWAuthenticate != "" {
		w.Header().Add(wwwAuthenticateHeader, c.WWWAuthenticate)
	}

	msg := err.Error()
	switch kind {
	case auth.KindKeyFetchFailure:
		msg = "authorization temporarily unavailable"
	case auth.KindInternal:
		msg = statusMessages[http.StatusInternalServerError]
	}
	writeJSON(w, c.Status, map[string]any{
		"success": false,
		"error":   c.Status,
		"code":    string(kind),
		"message": msg,
	})
	h.log.InfoContext(r.Context(), "http.auth.fail", slog.String("kind", string(kind)), slog.Int("status", c.Status))
}

func (h *Handler) handleGetProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, h.prm)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int) {
	msg, ok := statusMessages[status]
	if !ok {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": status, "message": msg})
}

// writeStoreError maps catalog errors to responses.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeJSONError(w, http.StatusNotFound)
		h.log.InfoContext(r.Context(), op+".not_found")
	case errors.Is(err, catalog.ErrConflict):
		writeJSONError(w, http.StatusConflict)
		h.log.InfoContext(r.Context(), op+".conflict")
	case errors.Is(err, catalog.ErrInvalidDrink):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   http.StatusUnprocessableEntity,
			"message": err.Error(),
		})
		h.log.InfoContext(r.Context(), op+".invalid", slog.String("err", err.Error()))
	default:
		writeJSONError(w, http.StatusInternalServerError)
		h.log.ErrorContext(r.Context(), op+".fail", slog.String("err", err.Error()))
	}
}

// decodeJSON enforces a JSON content type and decodes the body into v. It
// writes the error response itself and reports whether decoding succeeded.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType)
		h.log.WarnContext(r.Context(), "content_type.unsupported")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest)
		h.log.WarnContext(r.Context(), "json.decode.fail", slog.String("err", err.Error()))
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
