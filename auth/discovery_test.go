package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggoodman/drinks-catalog-go/auth"
	"github.com/ggoodman/drinks-catalog-go/auth/authtest"
)

func TestNewFromDiscovery(t *testing.T) {
	iss := authtest.NewIssuer(t, audience)

	g, err := auth.NewFromDiscovery(context.Background(), iss.URL(), audience, auth.WithHTTPClient(iss.Client()))
	if err != nil {
		t.Fatalf("NewFromDiscovery: %v", err)
	}
	if got := g.SecurityConfig().JWKSURL; got != iss.JWKSURL() {
		t.Fatalf("jwks url: got %q want %q", got, iss.JWKSURL())
	}
	if iss.Fetches() != 0 {
		t.Fatalf("keys must not be fetched before first use")
	}

	tok := iss.Token(t, iss.Claims("user-1", "get:drinks-detail"))
	if _, err := g.Authorize(context.Background(), "Bearer "+tok, "get:drinks-detail"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestNewFromDiscovery_Errors(t *testing.T) {
	if _, err := auth.NewFromDiscovery(context.Background(), "", audience); err == nil {
		t.Fatalf("expected error for empty issuer")
	}
	if _, err := auth.NewFromDiscovery(context.Background(), "https://issuer.example.com", ""); err == nil {
		t.Fatalf("expected error for empty audience")
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := auth.NewFromDiscovery(context.Background(), srv.URL, audience, auth.WithHTTPClient(srv.Client())); err == nil {
		t.Fatalf("expected discovery failure")
	}
}
