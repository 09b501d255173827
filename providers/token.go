package providers

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/x-oauth2/internal/util"
)

// tokenLogPrefixLength is how many characters of a secret are shown in logs.
const tokenLogPrefixLength = 8

// Token is the result of a successful authorization code exchange.
// Ownership passes to the caller; nothing in this module keeps a copy.
type Token struct {
	// AccessToken is the bearer credential for API calls.
	AccessToken string

	// RefreshToken is only issued when the offline.access scope was granted.
	RefreshToken string

	// TokenType is usually "bearer".
	TokenType string

	// ExpiresIn is the access token lifetime reported by the provider.
	ExpiresIn time.Duration

	// Scopes are the scopes the provider actually granted.
	Scopes []string
}

// tokenJSON is the token endpoint wire format (RFC 6749 section 5.1).
type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Scope returns the granted scopes as a space-delimited string.
func (t *Token) Scope() string {
	return strings.Join(t.Scopes, " ")
}

// MarshalJSON encodes the token in the token endpoint wire format.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenJSON{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    int64(t.ExpiresIn / time.Second),
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope(),
	})
}

// UnmarshalJSON decodes the token endpoint wire format.
// It does not enforce required fields; the exchange client does that.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Token{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		TokenType:    raw.TokenType,
		ExpiresIn:    time.Duration(raw.ExpiresIn) * time.Second,
		Scopes:       strings.Fields(raw.Scope),
	}
	return nil
}

// LogValue implements slog.LogValuer. Credentials are truncated.
func (t *Token) LogValue() slog.Value {
	if t == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String("access_token_prefix", util.SafeTruncate(t.AccessToken, tokenLogPrefixLength)),
		slog.Bool("refresh_token_present", t.RefreshToken != ""),
		slog.String("token_type", t.TokenType),
		slog.Duration("expires_in", t.ExpiresIn),
		slog.String("scope", t.Scope()),
	)
}

// OAuth2Token converts the token into a golang.org/x/oauth2 token whose expiry
// is computed relative to issuedAt. The granted scope is kept as extra data.
func (t *Token) OAuth2Token(issuedAt time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    int64(t.ExpiresIn / time.Second),
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = issuedAt.Add(t.ExpiresIn)
	}
	return tok.WithExtra(map[string]any{"scope": t.Scope()})
}
