package jwtauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Header is the subset of the JOSE header needed to pick a key and verifier.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ,omitempty"`
}

// Claims holds the decoded token payload. It is populated once by Parse and
// never modified afterwards.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  jwt.ClaimStrings
	ExpiresAt *jwt.NumericDate
	NotBefore *jwt.NumericDate
	IssuedAt  *jwt.NumericDate

	perms    Permissions
	hasPerms bool
	raw      map[string]json.RawMessage
}

// Permissions returns a copy of the granted permission set and whether the
// token carried a permission claim at all.
func (c *Claims) Permissions() (Permissions, bool) {
	if !c.hasPerms {
		return nil, false
	}
	return NewPermissions(c.perms.List()...), true
}

// Decode unmarshals the full payload into ref.
func (c *Claims) Decode(ref any) error {
	b, err := json.Marshal(c.raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

// Parsed is a syntactically valid but not yet trusted token.
type Parsed struct {
	Header Header
	Claims *Claims
	// SigningInput is "<header>.<payload>" exactly as transmitted.
	SigningInput []byte
	Signature    []byte
}

type registeredClaims struct {
	Subject   string           `json:"sub"`
	Issuer    string           `json:"iss"`
	Audience  jwt.ClaimStrings `json:"aud"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	NotBefore *jwt.NumericDate `json:"nbf"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
}

var segmentDecoder = jwt.NewParser()

// Parse splits and decodes a compact JWS. It makes no trust decisions.
func Parse(raw string) (*Parsed, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errorf(KindMalformedToken, "token must have 3 segments, got %d", len(parts))
	}

	headerBytes, err := segmentDecoder.DecodeSegment(parts[0])
	if err != nil {
		return nil, newError(KindMalformedToken, "header is not valid base64url", err)
	}
	payloadBytes, err := segmentDecoder.DecodeSegment(parts[1])
	if err != nil {
		return nil, newError(KindMalformedToken, "payload is not valid base64url", err)
	}
	sig, err := segmentDecoder.DecodeSegment(parts[2])
	if err != nil {
		return nil, newError(KindMalformedToken, "signature is not valid base64url", err)
	}

	var hdr Header
	if err := json.Unmarshal(headerBytes, &hdr); err != nil {
		return nil, newError(KindMalformedToken, "header is not a JSON object", err)
	}
	if hdr.Alg == "" {
		return nil, newError(KindMalformedToken, "header is missing alg", nil)
	}
	if hdr.Kid == "" {
		return nil, newError(KindMalformedToken, "header is missing kid", nil)
	}

	claims, err := decodeClaims(payloadBytes)
	if err != nil {
		return nil, err
	}

	return &Parsed{
		Header:       hdr,
		Claims:       claims,
		SigningInput: []byte(raw[:len(parts[0])+1+len(parts[1])]),
		Signature:    sig,
	}, nil
}

func decodeClaims(payload []byte) (*Claims, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, newError(KindMalformedToken, "payload is not a JSON object", err)
	}
	var reg registeredClaims
	if err := json.Unmarshal(payload, &reg); err != nil {
		return nil, newError(KindMalformedToken, "registered claims have unexpected types", err)
	}

	c := &Claims{
		Subject:   reg.Subject,
		Issuer:    reg.Issuer,
		Audience:  reg.Audience,
		ExpiresAt: reg.ExpiresAt,
		NotBefore: reg.NotBefore,
		IssuedAt:  reg.IssuedAt,
		raw:       raw,
	}
	for _, name := range permissionClaims {
		v, ok := raw[name]
		if !ok {
			continue
		}
		perms, present, err := parsePermissionClaim(v)
		if err != nil {
			return nil, newError(KindMalformedToken, fmt.Sprintf("%s claim %v", name, err), nil)
		}
		if present {
			c.perms, c.hasPerms = perms, true
			break
		}
	}
	return c, nil
}
