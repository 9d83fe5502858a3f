package jwtauth

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// permissionClaims lists the claims consulted for granted permissions, in
// order. Auth0 RBAC emits a "permissions" array; RFC 9068 access tokens carry
// a space-delimited "scope" string. The first claim present wins.
var permissionClaims = []string{"permissions", "scope"}

// Permissions is a normalized set of granted permission strings.
type Permissions map[string]struct{}

// NewPermissions builds a set from the given strings, dropping empties.
func NewPermissions(perms ...string) Permissions {
	p := make(Permissions, len(perms))
	for _, s := range perms {
		if s != "" {
			p[s] = struct{}{}
		}
	}
	return p
}

// Has reports exact membership. No prefix or wildcard matching is performed.
func (p Permissions) Has(perm string) bool {
	_, ok := p[perm]
	return ok
}

// List returns the permissions sorted.
func (p Permissions) List() []string {
	out := make([]string, 0, len(p))
	for s := range p {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

var errPermissionClaimType = errors.New("must be a string or an array of strings")

// parsePermissionClaim accepts either a space-delimited string or an array
// of strings. A JSON null is reported as absent.
func parsePermissionClaim(raw json.RawMessage) (Permissions, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return NewPermissions(strings.Fields(s)...), true, nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false, errPermissionClaimType
	}
	return NewPermissions(arr...), true, nil
}

// Grant is the outcome of a successful permission check.
type Grant struct {
	Subject     string
	Permissions Permissions
}

// Enforce confirms that validated claims carry required. A token with no
// permission claim at all fails differently from one that lacks just this
// permission. An empty required permission only demands that the claim
// exists.
func Enforce(c *Claims, required string) (*Grant, error) {
	if c == nil {
		return nil, newError(KindInternal, "no claims to enforce", nil)
	}
	perms, ok := c.Permissions()
	if !ok {
		return nil, newError(KindPermissionClaimMissing, "token carries no permissions claim", nil)
	}
	if required != "" && !perms.Has(required) {
		return nil, errorf(KindPermissionDenied, "permission %q not granted", required)
	}
	return &Grant{Subject: c.Subject, Permissions: perms}, nil
}
