package jwtauth

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
)

func seg(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func TestParse_Malformed(t *testing.T) {
	goodHeader := seg(`{"alg":"RS256","kid":"k1"}`)
	goodPayload := seg(`{"sub":"u"}`)

	tests := []struct {
		name string
		tok  string
		desc string
	}{
		{name: "two segments", tok: goodHeader + "." + goodPayload, desc: "3 segments"},
		{name: "four segments", tok: goodHeader + "." + goodPayload + ".c2ln.extra", desc: "3 segments"},
		{name: "empty", tok: "", desc: "3 segments"},
		{name: "bad header base64", tok: "!!!." + goodPayload + ".c2ln", desc: "header is not valid base64url"},
		{name: "bad payload base64", tok: goodHeader + ".***.c2ln", desc: "payload is not valid base64url"},
		{name: "bad signature base64", tok: goodHeader + "." + goodPayload + ".%%", desc: "signature is not valid base64url"},
		{name: "header not json", tok: seg("nope") + "." + goodPayload + ".c2ln", desc: "header is not a JSON object"},
		{name: "payload not json", tok: goodHeader + "." + seg("[1,2") + ".c2ln", desc: "payload is not a JSON object"},
		{name: "payload null", tok: goodHeader + "." + seg("null") + ".c2ln", desc: "payload is not a JSON object"},
		{name: "missing alg", tok: seg(`{"kid":"k1"}`) + "." + goodPayload + ".c2ln", desc: "missing alg"},
		{name: "missing kid", tok: seg(`{"alg":"RS256"}`) + "." + goodPayload + ".c2ln", desc: "missing kid"},
		{name: "exp wrong type", tok: goodHeader + "." + seg(`{"exp":"tomorrow"}`) + ".c2ln", desc: "registered claims"},
		{name: "permissions wrong type", tok: goodHeader + "." + seg(`{"permissions":42}`) + ".c2ln", desc: "permissions claim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.tok)
			wantKind(t, err, KindMalformedToken)
			if !strings.Contains(err.Error(), tt.desc) {
				t.Fatalf("error %q does not mention %q", err, tt.desc)
			}
		})
	}
}

func TestParse_KeepsTransmittedSigningInput(t *testing.T) {
	// Deliberately unusual but valid JSON spacing: the signing input must be
	// the transmitted bytes, not a re-encoding.
	h := seg(`{ "kid" : "k1", "alg":"RS256" }`)
	p := seg(`{"sub":"u",  "aud":["a","b"], "exp": 1700003600}`)
	tok := h + "." + p + "." + seg("sig")

	parsed, err := Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := string(parsed.SigningInput), h+"."+p; got != want {
		t.Fatalf("signing input = %q, want %q", got, want)
	}
	if string(parsed.Signature) != "sig" {
		t.Fatalf("signature = %q", parsed.Signature)
	}
	if parsed.Header.Alg != "RS256" || parsed.Header.Kid != "k1" {
		t.Fatalf("header = %+v", parsed.Header)
	}
	if !reflect.DeepEqual([]string(parsed.Claims.Audience), []string{"a", "b"}) {
		t.Fatalf("aud = %v", parsed.Claims.Audience)
	}
	if parsed.Claims.ExpiresAt == nil || parsed.Claims.ExpiresAt.Unix() != 1700003600 {
		t.Fatalf("exp = %v", parsed.Claims.ExpiresAt)
	}
}

func TestParse_PermissionForms(t *testing.T) {
	hdr := seg(`{"alg":"RS256","kid":"k1"}`)
	tests := []struct {
		name    string
		payload string
		want    []string
		present bool
	}{
		{name: "array", payload: `{"permissions":["post:drinks","get:drinks-detail"]}`, want: []string{"get:drinks-detail", "post:drinks"}, present: true},
		{name: "space delimited string", payload: `{"permissions":"post:drinks  patch:drinks"}`, want: []string{"patch:drinks", "post:drinks"}, present: true},
		{name: "scope fallback", payload: `{"scope":"openid post:drinks"}`, want: []string{"openid", "post:drinks"}, present: true},
		{name: "permissions wins over scope", payload: `{"scope":"openid","permissions":["delete:drinks"]}`, want: []string{"delete:drinks"}, present: true},
		{name: "empty array is present", payload: `{"permissions":[]}`, want: []string{}, present: true},
		{name: "null permissions falls through to scope", payload: `{"permissions":null,"scope":"a"}`, want: []string{"a"}, present: true},
		{name: "absent", payload: `{"sub":"u"}`, present: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(hdr + "." + seg(tt.payload) + ".")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			perms, ok := parsed.Claims.Permissions()
			if ok != tt.present {
				t.Fatalf("present = %v, want %v", ok, tt.present)
			}
			if !tt.present {
				return
			}
			if got := perms.List(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("perms = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaims_PermissionsReturnsCopy(t *testing.T) {
	parsed, err := Parse(seg(`{"alg":"RS256","kid":"k"}`) + "." + seg(`{"permissions":["a"]}`) + ".")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	perms, _ := parsed.Claims.Permissions()
	perms["b"] = struct{}{}
	again, _ := parsed.Claims.Permissions()
	if again.Has("b") {
		t.Fatal("mutating a returned set changed the claims")
	}
}
