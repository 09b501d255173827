// Package oauth is an OAuth 2.0 authorization code client with PKCE for the
// X API.
//
// A Client ties together the pkce, authorize, exchange and retry packages:
//
//	client, err := oauth.NewClient(oauth.Config{
//	    ClientID:     os.Getenv("CLIENT_ID"),
//	    ClientSecret: os.Getenv("CLIENT_SECRET"),
//	    RedirectURI:  "http://localhost:8000/callback",
//	    Scopes:       x.AllScopes(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state := oauth.NewState()
//	authURL, verifier, err := client.AuthorizationURL(state)
//	// send the user to authURL and keep state and verifier
//
//	// in the callback handler
//	code, err := oauth.ParseCallback(r.URL.Query(), state)
//	token, err := client.Exchange(r.Context(), code, verifier)
//
// Exchange retries 5xx responses, transport failures and per-attempt timeouts
// with exponential backoff. Provider errors such as invalid_grant end the flow
// immediately; the authorization code is single-use, so the user has to start
// over with a new URL.
//
// The verifier is never sent in the authorization URL and nothing in this
// package stores it. Tokens are handed to the caller and not retained.
package oauth
