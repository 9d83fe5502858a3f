package jwtauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the distinguishable ways an authorization attempt can fail.
// The string value doubles as the machine-readable "code" in HTTP error bodies.
type Kind string

const (
	KindMissingAuthHeader      Kind = "missing_auth_header"
	KindMalformedAuthHeader    Kind = "malformed_auth_header"
	KindMalformedToken         Kind = "malformed_token"
	KindUnsupportedAlgorithm   Kind = "unsupported_algorithm"
	KindKeyNotFound            Kind = "key_not_found"
	KindKeyFetchFailure        Kind = "key_fetch_failure"
	KindInvalidSignature       Kind = "invalid_signature"
	KindTokenExpired           Kind = "token_expired"
	KindIssuerMismatch         Kind = "issuer_mismatch"
	KindAudienceMismatch       Kind = "audience_mismatch"
	KindPermissionClaimMissing Kind = "permission_claim_missing"
	KindPermissionDenied       Kind = "permission_denied"
	KindInternal               Kind = "internal"
)

// HTTPStatus maps a failure kind to the response status a resource server
// should use. Only infrastructure trouble maps to 5xx.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformedAuthHeader:
		return http.StatusBadRequest
	case KindMissingAuthHeader,
		KindMalformedToken,
		KindUnsupportedAlgorithm,
		KindKeyNotFound,
		KindInvalidSignature,
		KindTokenExpired,
		KindIssuerMismatch,
		KindAudienceMismatch:
		return http.StatusUnauthorized
	case KindPermissionClaimMissing, KindPermissionDenied:
		return http.StatusForbidden
	case KindKeyFetchFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed failure produced by every stage of token evaluation.
type Error struct {
	Kind        Kind
	Description string
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind. This lets
// callers write errors.Is(err, ErrTokenExpired) without caring about the
// description attached to a particular failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Description == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, desc string, err error) *Error {
	return &Error{Kind: kind, Description: desc, Err: err}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from err. Errors that did not originate
// from this package report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// AsError converts any error into an *Error, mapping foreign errors to
// KindInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return newError(KindInternal, "unexpected authorization error", err)
}
