package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPError is returned when the server answers with a status outside 200-299.
type HTTPError struct {
	Method     Method
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	snippet := bodySnippet(e.Header.Get("Content-Type"), e.Body)
	if snippet == "" {
		return fmt.Sprintf("%s %s: http status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http status %d: %s", e.Method, e.URL, e.StatusCode, snippet)
}

// Text returns the raw response body.
func (e *HTTPError) Text() string { return string(e.Body) }

// TimeoutError is returned when no response arrived within the timeout.
type TimeoutError struct {
	Method  Method
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s: %v", e.Method, e.URL, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError covers failures below HTTP: DNS, refused connections, TLS, cancellation.
type TransportError struct {
	Method Method
	URL    string
	Err    error
}

// ConnectionError is the name callers coming from other clients tend to look for.
type ConnectionError = TransportError

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SerializationError is returned when a JSON-typed response body does not parse.
type SerializationError struct {
	Method     Method
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s %s: decode json response (status %d): %v", e.Method, e.URL, e.StatusCode, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Text returns the raw response body that failed to parse.
func (e *SerializationError) Text() string { return string(e.Body) }

// IsHTTPError reports whether err is, or wraps, an *HTTPError.
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// StatusCode extracts the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	if httpErr, ok := IsHTTPError(err); ok {
		return httpErr.StatusCode
	}
	var serErr *SerializationError
	if errors.As(err, &serErr) {
		return serErr.StatusCode
	}
	return 0
}
