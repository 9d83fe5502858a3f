// Package auth guards catalog operations behind bearer JWTs issued by an
// external OAuth 2.0 / OIDC authorization server.
//
// A Gate evaluates one request at a time: it extracts the bearer token from
// the Authorization header, decodes it, verifies its signature against the
// issuer's published JWK set, checks exp/nbf, issuer and audience, and finally
// checks that the token grants the permission the operation requires. The
// first failing stage decides the outcome.
//
// # Constructing a Gate
//
// NewFromDiscovery learns the issuer's jwks_uri from
// /.well-known/openid-configuration:
//
//	gate, err := auth.NewFromDiscovery(ctx, "https://tenant.example.com/", "drinks",
//	    auth.WithLeeway(30*time.Second),
//	)
//
// When the key set location is already known, build a SecurityConfig and call
// NewGate. JWKSFile reads keys from disk; pair it with Gate.WatchKeyFile to
// pick up rotated files.
//
// Keys are fetched lazily on the first token whose kid is not cached and are
// never refreshed in the background. A token naming an unknown kid forces one
// refetch, which is how key rotation is absorbed.
//
// # Algorithms & Clock Skew
//
// By default only RS256 is accepted. Use WithAllowedAlgs to broaden the set;
// "none" and HMAC algorithms are refused at construction. WithLeeway adds
// tolerance for clock skew when validating exp and nbf. The default is zero.
//
// # Permissions
//
// Granted permissions come from the "permissions" claim (a string array) or,
// when absent, the space-delimited "scope" claim. Matching is exact and case
// sensitive. A token with neither claim fails with KindPermissionClaimMissing
// so misconfigured issuers are distinguishable from under-privileged users.
//
// # Errors
//
// Every failure is an *Error carrying a Kind. Compare with errors.Is against
// the Err* sentinels, or use KindOf. Kind.HTTPStatus and ChallengeFor map a
// failure to the HTTP response a resource server should send.
package auth
