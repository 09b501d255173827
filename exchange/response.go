package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/x-oauth2/internal/util"
	"github.com/giantswarm/x-oauth2/providers"
)

// maxBodySummaryLength bounds the response body copy kept on *Error.
const maxBodySummaryLength = 256

// maxExpiresIn is the largest expires_in that fits a time.Duration.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// tokenResponse is the token endpoint success body. expires_in is decoded as
// json.Number because some servers send it as a string.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	Scope        string      `json:"scope"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// errorResponse is the RFC 6749 section 5.2 error body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// parseResponse classifies a complete HTTP response.
func parseResponse(resp *http.Response, body []byte) (*providers.Token, error) {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return parseSuccess(resp, body)
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return nil, errorFromBody(KindRetryable, resp, body)
	case status >= 400 && status < 500:
		return nil, errorFromBody(KindFatal, resp, body)
	case status >= 500 && status < 600:
		return nil, errorFromBody(KindRetryable, resp, body)
	default:
		e := withResponse(fatal(fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)), resp)
		e.Body = util.SummarizeBody(body, maxBodySummaryLength)
		return nil, e
	}
}

func parseSuccess(resp *http.Response, body []byte) (*providers.Token, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, withResponse(retryable(ErrEmptyResponse), resp)
	}

	var raw tokenResponse
	var err error
	if isFormEncoded(resp.Header.Get("Content-Type")) {
		raw, err = decodeForm(body)
	} else {
		err = json.Unmarshal(body, &raw)
	}
	if err != nil {
		e := withResponse(fatal(fmt.Errorf("%w: %w", ErrMalformedResponse, err)), resp)
		e.Body = util.SummarizeBody(body, maxBodySummaryLength)
		return nil, e
	}

	if raw.Error != "" {
		e := withResponse(fatal(ErrProviderError), resp)
		e.Code = raw.Error
		e.Description = raw.ErrorDescription
		e.URI = raw.ErrorURI
		return nil, e
	}

	token, err := raw.token()
	if err != nil {
		e := withResponse(fatal(fmt.Errorf("%w: %w", ErrMalformedResponse, err)), resp)
		e.Body = util.SummarizeBody(body, maxBodySummaryLength)
		return nil, e
	}
	return token, nil
}

// token validates required fields and converts to providers.Token.
func (r tokenResponse) token() (*providers.Token, error) {
	if r.AccessToken == "" {
		return nil, fmt.Errorf("missing access_token")
	}
	if r.TokenType == "" {
		return nil, fmt.Errorf("missing token_type")
	}
	if r.ExpiresIn == "" {
		return nil, fmt.Errorf("missing expires_in")
	}
	seconds, err := strconv.ParseInt(r.ExpiresIn.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_in %q: %w", r.ExpiresIn, err)
	}
	if seconds < 0 {
		return nil, fmt.Errorf("negative expires_in %d", seconds)
	}
	if seconds > maxExpiresIn {
		return nil, fmt.Errorf("expires_in %d out of range", seconds)
	}
	return &providers.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    time.Duration(seconds) * time.Second,
		Scopes:       strings.Fields(r.Scope),
	}, nil
}

// errorFromBody builds an *Error from a non-2xx response, using the OAuth
// error body when there is one.
func errorFromBody(kind Kind, resp *http.Response, body []byte) *Error {
	e := withResponse(&Error{Kind: kind}, resp)

	var oerr errorResponse
	if isFormEncoded(resp.Header.Get("Content-Type")) {
		if vals, err := url.ParseQuery(string(body)); err == nil {
			oerr = errorResponse{
				Error:            vals.Get("error"),
				ErrorDescription: vals.Get("error_description"),
				ErrorURI:         vals.Get("error_uri"),
			}
		}
	} else if len(body) > 0 {
		_ = json.Unmarshal(body, &oerr)
	}

	if oerr.Error != "" {
		e.Code = oerr.Error
		e.Description = oerr.ErrorDescription
		e.URI = oerr.ErrorURI
		e.Err = ErrProviderError
		return e
	}

	e.Err = fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	e.Body = util.SummarizeBody(body, maxBodySummaryLength)
	return e
}

func withResponse(e *Error, resp *http.Response) *Error {
	e.StatusCode = resp.StatusCode
	e.Header = resp.Header
	return e
}

func isFormEncoded(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mediaType == "application/x-www-form-urlencoded" || mediaType == "text/plain")
}

func decodeForm(body []byte) (tokenResponse, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		AccessToken:      vals.Get("access_token"),
		TokenType:        vals.Get("token_type"),
		ExpiresIn:        json.Number(vals.Get("expires_in")),
		RefreshToken:     vals.Get("refresh_token"),
		Scope:            vals.Get("scope"),
		Error:            vals.Get("error"),
		ErrorDescription: vals.Get("error_description"),
		ErrorURI:         vals.Get("error_uri"),
	}, nil
}
