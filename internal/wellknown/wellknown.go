// Package wellknown holds documents served under /.well-known.
package wellknown

// ProtectedResourcePath is where RFC 9728 metadata is published.
const ProtectedResourcePath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata tells clients which authorization server issues
// tokens for this resource and which permissions it understands (RFC 9728).
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	JwksURI                string   `json:"jwks_uri,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
	ResourceDocumentation  string   `json:"resource_documentation,omitempty"`
}

// NewProtectedResourceMetadata describes resource, protected by tokens from
// issuer. Tokens are only accepted in the Authorization header.
func NewProtectedResourceMetadata(resource, issuer, jwksURI string, scopes []string) ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{issuer},
		JwksURI:                jwksURI,
		ScopesSupported:        append([]string(nil), scopes...),
		BearerMethodsSupported: []string{"header"},
	}
}
