// Package pkce generates Proof Key for Code Exchange (RFC 7636) verifier and
// challenge pairs using the S256 method.
package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

// MethodS256 is the only code challenge method this package produces.
const MethodS256 = "S256"

// Verifier length limits from RFC 7636 section 4.1.
const (
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

// verifierEntropyBytes yields a 43 character verifier after base64url encoding.
const verifierEntropyBytes = 32

// ErrInvalidVerifier is returned when a verifier violates the RFC 7636 grammar.
var ErrInvalidVerifier = errors.New("invalid code verifier")

// Verifier is a PKCE code verifier. It is held in memory by the caller between
// the authorization redirect and the token exchange and is never put in a URL.
type Verifier string

// Challenge is the S256 code challenge derived from a Verifier.
type Challenge string

// Pair is a verifier together with the challenge derived from it.
// Pairs are only produced by Generate, so the two halves always match.
type Pair struct {
	Verifier  Verifier
	Challenge Challenge
}

// Method returns the code challenge method of the pair.
func (p Pair) Method() string {
	return MethodS256
}

// Generator produces PKCE pairs from an entropy source.
type Generator struct {
	entropy io.Reader
}

// DefaultGenerator reads from crypto/rand.
var DefaultGenerator = NewGenerator(nil)

// NewGenerator creates a generator reading from entropy.
// A nil entropy source means crypto/rand.Reader. Tests can inject a
// deterministic reader to obtain reproducible verifiers.
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{entropy: entropy}
}

// Generate returns a fresh verifier and its challenge.
//
// The function panics if the entropy source fails, which indicates a critical
// system-level failure that callers cannot recover from.
func (g *Generator) Generate() Pair {
	b := make([]byte, verifierEntropyBytes)
	if _, err := io.ReadFull(g.entropy, b); err != nil {
		panic(fmt.Sprintf("pkce: reading entropy failed: %v", err))
	}
	verifier := Verifier(base64.RawURLEncoding.EncodeToString(b))
	return Pair{
		Verifier:  verifier,
		Challenge: ChallengeFromVerifier(verifier),
	}
}

// Generate returns a fresh pair from DefaultGenerator.
func Generate() Pair {
	return DefaultGenerator.Generate()
}

// ChallengeFromVerifier computes base64url_nopad(sha256(verifier)).
func ChallengeFromVerifier(v Verifier) Challenge {
	return Challenge(oauth2.S256ChallengeFromVerifier(string(v)))
}

// ValidateVerifier checks length and alphabet against RFC 7636 section 4.1:
// 43 to 128 characters from [A-Za-z0-9-._~].
func ValidateVerifier(v Verifier) error {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return fmt.Errorf("%w: length %d not in [%d, %d]", ErrInvalidVerifier, len(v), MinVerifierLength, MaxVerifierLength)
	}
	for i := 0; i < len(v); i++ {
		if !isUnreserved(v[i]) {
			return fmt.Errorf("%w: character %q at index %d", ErrInvalidVerifier, v[i], i)
		}
	}
	return nil
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
