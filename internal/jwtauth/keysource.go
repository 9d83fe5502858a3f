package jwtauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// maxKeySetBytes bounds how much of a JWKS response is read.
const maxKeySetBytes = 1 << 20

// KeySource produces the raw JSON of a JWK set document.
type KeySource interface {
	FetchKeySet(ctx context.Context) ([]byte, error)
}

// HTTPKeySource fetches a JWK set with a GET request to URL.
type HTTPKeySource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPKeySource) FetchKeySet(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
}

// FileKeySource reads a JWK set from a local file. It is meant for
// deployments that receive keys out of band (mounted secrets, air-gapped).
type FileKeySource struct {
	Path string
}

func (s *FileKeySource) FetchKeySet(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}
