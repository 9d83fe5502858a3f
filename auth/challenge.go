package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthenticationChallenge describes an HTTP challenge (status + WWW-Authenticate header).
// WWWAuthenticate is empty when the failure is not the client's to fix.
type AuthenticationChallenge struct {
	Status          int
	WWWAuthenticate string
}

// ChallengeFor maps an authorization failure to the RFC 6750 challenge a
// resource server should send. scope is the permission that was required and
// is advertised on insufficient_scope challenges.
func ChallengeFor(realm string, err error, scope string) *AuthenticationChallenge {
	var ae *Error
	if !errors.As(err, &ae) {
		return &AuthenticationChallenge{Status: http.StatusInternalServerError}
	}
	c := &AuthenticationChallenge{Status: ae.Kind.HTTPStatus()}
	switch ae.Kind {
	case KindMissingAuthHeader:
		// RFC 6750 §3.1: no error code when the request carried no credentials.
		c.WWWAuthenticate = buildBearerChallenge(realm, nil)
	case KindMalformedAuthHeader:
		c.WWWAuthenticate = buildBearerChallenge(realm, [][2]string{
			{"error", "invalid_request"},
			{"error_description", ae.Error()},
		})
	case KindPermissionClaimMissing, KindPermissionDenied:
		params := [][2]string{
			{"error", "insufficient_scope"},
			{"error_description", ae.Error()},
		}
		if scope != "" {
			params = append(params, [2]string{"scope", scope})
		}
		c.WWWAuthenticate = buildBearerChallenge(realm, params)
	case KindKeyFetchFailure, KindInternal:
	default:
		c.WWWAuthenticate = buildBearerChallenge(realm, [][2]string{
			{"error", "invalid_token"},
			{"error_description", ae.Error()},
		})
	}
	return c
}

// buildBearerChallenge builds a standardized Bearer challenge header value.
// Format:
//
//	Bearer realm="<realm>", error="...", error_description="..."
//
// Realm is omitted if empty. Params are emitted in the given order.
func buildBearerChallenge(realm string, params [][2]string) string {
	pieces := make([]string, 0, 1+len(params))
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	for _, p := range params {
		pieces = append(pieces, fmt.Sprintf(`%s="%s"`, p[0], esc(p[1])))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
