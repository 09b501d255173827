package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets the response headers for a page that has seen an
// authorization code. HSTS is only sent when serverURL uses https.
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")

	// no scripts, no subresources
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	// the callback URL holds the code and state
	h.Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(serverURL); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
}

// Headers returns middleware applying SetSecurityHeaders to every response.
func Headers(serverURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetSecurityHeaders(w, serverURL)
			next.ServeHTTP(w, r)
		})
	}
}
