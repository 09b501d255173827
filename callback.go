package oauth

import (
	"crypto/subtle"
	"net/url"
)

// ParseCallback extracts the authorization code from the query of the
// redirect URI and checks it against the state the flow was started with.
//
// A provider-reported error (error=access_denied, ...) is returned as
// *CallbackError. The state is checked first, so both a code and a
// *CallbackError belong to this flow.
func ParseCallback(query url.Values, expectedState string) (string, error) {
	// CRITICAL SECURITY: state binds the callback to this flow (CSRF)
	state := query.Get("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return "", ErrStateMismatch
	}

	if errorParam := query.Get("error"); errorParam != "" {
		return "", &CallbackError{
			Code:        errorParam,
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
		}
	}

	code := query.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}
