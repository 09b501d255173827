package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is one scripted token endpoint reply.
type TokenResponse struct {
	Status  int
	Body    string
	Headers map[string]string

	// Delay holds the response back; the handler gives up when the client
	// goes away.
	Delay time.Duration
}

// RecordedRequest is a token request as seen by the server.
type RecordedRequest struct {
	Method string
	Header http.Header
	Form   url.Values
}

// TokenServer is an httptest server that replays scripted responses. The
// last response repeats once the script runs out.
type TokenServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses []TokenResponse
	requests  []RecordedRequest
}

// NewTokenServer starts a token server closed on test cleanup.
func NewTokenServer(t *testing.T, responses ...TokenResponse) *TokenServer {
	t.Helper()
	if len(responses) == 0 {
		responses = []TokenResponse{SuccessResponse("test-access-token")}
	}
	s := &TokenServer{responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Header: r.Header.Clone(),
		Form:   form,
	})
	idx := min(len(s.requests)-1, len(s.responses)-1)
	resp := s.responses[idx]
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp.Body)
}

// Endpoint returns an endpoint pointing at the server, using Basic auth.
func (s *TokenServer) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   s.URL + "/authorize",
		TokenURL:  s.URL + "/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// Calls returns the number of requests received.
func (s *TokenServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the recorded requests.
func (s *TokenServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// SuccessResponse is a 200 token response carrying a refresh token.
func SuccessResponse(accessToken string) TokenResponse {
	body, _ := json.Marshal(map[string]any{
		"access_token":  accessToken,
		"token_type":    "bearer",
		"expires_in":    7200,
		"refresh_token": "test-refresh-token",
		"scope":         "tweet.read users.read offline.access",
	})
	return TokenResponse{Status: http.StatusOK, Body: string(body)}
}

// ErrorResponse is an RFC 6749 error response.
func ErrorResponse(status int, code, description string) TokenResponse {
	return TokenResponse{
		Status: status,
		Body:   fmt.Sprintf(`{"error":%q,"error_description":%q}`, code, description),
	}
}
