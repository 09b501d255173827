// Package providers defines the OAuth provider interface and the value types that
// flow between the authorization and token-exchange components.
//
// This package contains:
//   - Provider: endpoints and scope vocabulary of an authorization server
//   - ClientIdentity: client key, client secret and redirect URI
//   - Token: the parsed token endpoint response
//
// Implementations are provided in subpackages:
//   - providers/x: X (formerly Twitter) OAuth 2.0 with PKCE
//
// Example usage:
//
//	identity := providers.ClientIdentity{
//	    ClientID:     "your-client-id",
//	    ClientSecret: "your-client-secret",
//	    RedirectURI:  "http://localhost:8000/callback",
//	}
//	if err := identity.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package providers
