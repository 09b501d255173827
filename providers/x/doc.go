// Package x describes the X (formerly Twitter) OAuth 2.0 authorization server.
//
// X implements the authorization code flow with mandatory PKCE. Confidential
// clients authenticate at the token endpoint with HTTP Basic credentials.
//
// # Scopes
//
// X uses a fixed scope vocabulary (tweet.read, users.read, offline.access, ...).
// AllScopes returns every scope in vocabulary order, which is convenient for
// development apps that want full access:
//
//	scopes := x.NewScopeSet(x.AllScopes()...)
//	fmt.Println(scopes) // "tweet.read tweet.write ... media.write"
//
// A refresh token is only issued when offline.access is requested.
//
// # Example Usage
//
//	provider := x.NewProvider()
//	endpoint := provider.Endpoint()
//	fmt.Println(endpoint.AuthURL)  // https://x.com/i/oauth2/authorize
//	fmt.Println(endpoint.TokenURL) // https://api.x.com/2/oauth2/token
package x
