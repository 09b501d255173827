package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	oauth "github.com/giantswarm/x-oauth2"
	"github.com/giantswarm/x-oauth2/security"
)

// callbackResult is what the callback handler hands to the login loop
type callbackResult struct {
	code string
	err  error
}

// newCallbackRouter serves the path of redirect and reports the first
// callback that belongs to this flow on results. Requests with a wrong or
// missing state are answered but do not end the login.
func newCallbackRouter(redirect *url.URL, state string, results chan<- callbackResult) http.Handler {
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(redirect.String()))

	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		code, err := oauth.ParseCallback(req.URL.Query(), state)
		if errors.Is(err, oauth.ErrStateMismatch) {
			http.Error(w, "Authorization failed: "+err.Error(), http.StatusBadRequest)
			return
		}

		select {
		case results <- callbackResult{code: code, err: err}:
		default:
			http.Error(w, "Authorization already completed", http.StatusConflict)
			return
		}

		if err != nil {
			http.Error(w, "Authorization failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Authorization received. You can close this window.\n")
	})

	return r
}

// runLogin prints the authorization URL, waits for the browser to hit the
// redirect URI on the local machine and exchanges the code.
func runLogin(ctx context.Context, client *oauth.Client, redirectURI string, opts options, logger *slog.Logger, out io.Writer) error {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	state := opts.state
	if state == "" {
		state = oauth.NewState()
	}
	authURL, verifier, err := client.AuthorizationURL(state)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           newCallbackRouter(u, state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Open this URL in your browser:\n\n  %s\n\nWaiting for callback on %s ...\n", authURL, redirectURI)

	waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var result callbackResult
	select {
	case result = <-results:
	case <-waitCtx.Done():
		return fmt.Errorf("no callback received: %w", waitCtx.Err())
	}
	if result.err != nil {
		return result.err
	}

	logger.Debug("Callback received, exchanging code")
	token, err := client.Exchange(ctx, result.code, verifier)
	if err != nil {
		return err
	}
	return writeJSON(out, token)
}
