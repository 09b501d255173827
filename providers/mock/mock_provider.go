// Package mock provides mock implementations of the Provider interface for testing.
package mock

import (
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/giantswarm/x-oauth2/providers"
)

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// EndpointFunc is called when Endpoint() is invoked
	EndpointFunc func() oauth2.Endpoint

	// ValidateScopesFunc is called when ValidateScopes() is invoked
	ValidateScopesFunc func(scopes []string) error

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// NewMockProvider creates a new mock provider with default implementations.
// The default accepts any scope in allowed, or every scope when allowed is empty.
func NewMockProvider(allowed ...string) *MockProvider {
	vocabulary := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		vocabulary[s] = true
	}

	return &MockProvider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		EndpointFunc: func() oauth2.Endpoint {
			return oauth2.Endpoint{
				AuthURL:   "https://mock.example.com/authorize",
				TokenURL:  "https://mock.example.com/token",
				AuthStyle: oauth2.AuthStyleInParams,
			}
		},
		ValidateScopesFunc: func(scopes []string) error {
			if len(vocabulary) == 0 {
				return nil
			}
			for _, s := range scopes {
				if !vocabulary[s] {
					return fmt.Errorf("mock: unknown scope %q", s)
				}
			}
			return nil
		},
	}
}

// Compile-time check
var _ providers.Provider = (*MockProvider)(nil)

// Name implements providers.Provider
func (m *MockProvider) Name() string {
	m.incrementCallCount("Name")
	return m.NameFunc()
}

// Endpoint implements providers.Provider
func (m *MockProvider) Endpoint() oauth2.Endpoint {
	m.incrementCallCount("Endpoint")
	return m.EndpointFunc()
}

// ValidateScopes implements providers.Provider
func (m *MockProvider) ValidateScopes(scopes []string) error {
	m.incrementCallCount("ValidateScopes")
	return m.ValidateScopesFunc(scopes)
}

// incrementCallCount safely increments the call count for a method
func (m *MockProvider) incrementCallCount(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// GetCallCount returns the number of times a method was called
func (m *MockProvider) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

// ResetCallCounts resets all call counts to zero
func (m *MockProvider) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}
