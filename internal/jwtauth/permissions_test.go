package jwtauth

import (
	"reflect"
	"testing"
)

func claimsWith(t *testing.T, payload string) *Claims {
	t.Helper()
	p, err := Parse(seg(`{"alg":"RS256","kid":"k"}`) + "." + seg(payload) + ".")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p.Claims
}

func TestEnforce_ExactMatchOnly(t *testing.T) {
	c := claimsWith(t, `{"sub":"u","permissions":["post:drinks"]}`)

	g, err := Enforce(c, "post:drinks")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if g.Subject != "u" || !g.Permissions.Has("post:drinks") {
		t.Fatalf("grant = %+v", g)
	}

	for _, near := range []string{"post:drink", "post:drinks:all", "POST:DRINKS", "post:", "*"} {
		_, err := Enforce(c, near)
		wantKind(t, err, KindPermissionDenied)
	}
}

func TestEnforce_ClaimMissingVersusDenied(t *testing.T) {
	_, err := Enforce(claimsWith(t, `{"sub":"u"}`), "post:drinks")
	wantKind(t, err, KindPermissionClaimMissing)

	_, err = Enforce(claimsWith(t, `{"sub":"u","permissions":[]}`), "post:drinks")
	wantKind(t, err, KindPermissionDenied)
}

func TestEnforce_EmptyRequirementNeedsClaim(t *testing.T) {
	if _, err := Enforce(claimsWith(t, `{"sub":"u","scope":""}`), ""); err != nil {
		t.Fatalf("enforce: %v", err)
	}
	_, err := Enforce(claimsWith(t, `{"sub":"u"}`), "")
	wantKind(t, err, KindPermissionClaimMissing)
}

func TestPermissions_List(t *testing.T) {
	p := NewPermissions("b", "", "a", "b")
	if got := p.List(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("List = %v", got)
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindMissingAuthHeader:      401,
		KindMalformedAuthHeader:    400,
		KindMalformedToken:         401,
		KindUnsupportedAlgorithm:   401,
		KindKeyNotFound:            401,
		KindKeyFetchFailure:        503,
		KindInvalidSignature:       401,
		KindTokenExpired:           401,
		KindIssuerMismatch:         401,
		KindAudienceMismatch:       401,
		KindPermissionClaimMissing: 403,
		KindPermissionDenied:       403,
		KindInternal:               500,
	}
	for k, want := range tests {
		if got := k.HTTPStatus(); got != want {
			t.Errorf("%s: status %d, want %d", k, got, want)
		}
	}
}
