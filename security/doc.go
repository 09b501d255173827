// Package security provides HTTP hardening for the pages the local login
// flow serves to the browser.
//
// The callback page carries the authorization code and state in its URL, so
// responses must not be cached, framed or leak a Referer to other origins.
//
// Example usage:
//
//	r := chi.NewRouter()
//	r.Use(security.Headers(redirectURI))
package security
