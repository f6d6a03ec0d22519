package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestIsHTTPErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("unsubscribe: %w", &HTTPError{
		Method:     MethodPost,
		URL:        "https://api.example.com/unsubscribe",
		StatusCode: 409,
		Header:     http.Header{"Content-Type": {"text/plain"}},
		Body:       []byte("already unsubscribed\n"),
	})

	httpErr, ok := IsHTTPError(err)
	if !ok {
		t.Fatalf("expected HTTPError, got %T", err)
	}
	if httpErr.StatusCode != 409 {
		t.Fatalf("status = %d", httpErr.StatusCode)
	}
	if httpErr.Text() != "already unsubscribed\n" {
		t.Fatalf("text = %q", httpErr.Text())
	}
	if !strings.HasSuffix(err.Error(), "http status 409: already unsubscribed") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if StatusCode(err) != 409 {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
}

func TestHTTPErrorWithoutBody(t *testing.T) {
	err := &HTTPError{Method: MethodDelete, URL: "https://x/y", StatusCode: 500}
	if got := err.Error(); got != "DELETE https://x/y: http status 500" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestTimeoutAndTransportErrorsUnwrap(t *testing.T) {
	timeoutErr := &TimeoutError{Method: MethodGet, URL: "https://x", Timeout: time.Second, Err: context.DeadlineExceeded}
	if !errors.Is(timeoutErr, context.DeadlineExceeded) {
		t.Fatalf("timeout error should unwrap to its cause")
	}
	if !IsTimeout(fmt.Errorf("wrapped: %w", timeoutErr)) {
		t.Fatalf("IsTimeout should see wrapped timeouts")
	}

	cause := errors.New("dial tcp: connection refused")
	transportErr := &TransportError{Method: MethodGet, URL: "https://x", Err: cause}
	if !errors.Is(transportErr, cause) {
		t.Fatalf("transport error should unwrap to its cause")
	}
	if IsTimeout(transportErr) {
		t.Fatalf("transport error is not a timeout")
	}
}

func TestBodySnippetTruncates(t *testing.T) {
	long := strings.Repeat("a", maxSnippetBytes+10)
	got := bodySnippet("text/plain", []byte(long))
	if len(got) != maxSnippetBytes+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected snippet length %d", len(got))
	}
	if bodySnippet("application/json", nil) != "" {
		t.Fatalf("empty body should give empty snippet")
	}
}

func TestHTMLTextUsesTitleWhenBodyIsEmpty(t *testing.T) {
	got := bodySnippet("text/html; charset=utf-8", []byte(`<html><head><title>Service Unavailable</title></head><body></body></html>`))
	if got != "Service Unavailable" {
		t.Fatalf("snippet = %q", got)
	}
}
