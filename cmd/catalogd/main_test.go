package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ggoodman/drinks-catalog-go/auth/authtest"
)

func runAuthorize(t *testing.T, iss *authtest.Issuer, stdin string, args ...string) (authorizeResult, error) {
	t.Helper()
	t.Setenv("AUTH_ISSUER", iss.URL())
	t.Setenv("AUTH_AUDIENCE", iss.Audience())
	t.Setenv("AUTH_JWKS_URL", iss.JWKSURL())
	t.Setenv("AUTH_JWKS_FILE", "")
	t.Setenv("CATALOG_STORE", "memory")
	t.Setenv("LOG_LEVEL", "info")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"authorize"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())

	var res authorizeResult
	if jerr := json.Unmarshal(out.Bytes(), &res); jerr != nil {
		t.Fatalf("decode output %q: %v", out.String(), jerr)
	}
	return res, err
}

func TestAuthorizeCommand_Granted(t *testing.T) {
	iss := authtest.NewIssuer(t, "drinks")
	tok := iss.Token(t, iss.Claims("barista", "post:drinks"))

	res, err := runAuthorize(t, iss, "", "--permission", "post:drinks", "--token", tok)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !res.Granted || res.Subject != "barista" || len(res.Permissions) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAuthorizeCommand_DeniedFromStdin(t *testing.T) {
	iss := authtest.NewIssuer(t, "drinks")
	tok := iss.Token(t, iss.Claims("barista", "get:drinks-detail"))

	res, err := runAuthorize(t, iss, tok+"\n", "--permission", "delete:drinks")
	if err == nil {
		t.Fatalf("expected denial")
	}
	if res.Granted || res.Kind != "permission_denied" || res.Status != 403 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
