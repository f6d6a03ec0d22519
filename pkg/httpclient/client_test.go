package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedLog struct {
	level string
	msg   string
	obj   interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) add(level, msg string, obj interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{level: level, msg: msg, obj: obj})
}

func (l *recordingLogger) InfoObj(msg, _ string, obj interface{})  { l.add("info", msg, obj) }
func (l *recordingLogger) DebugObj(msg, _ string, obj interface{}) { l.add("debug", msg, obj) }
func (l *recordingLogger) WarnObj(msg, _ string, obj interface{})  { l.add("warn", msg, obj) }
func (l *recordingLogger) ErrorObj(msg, _ string, obj interface{}) { l.add("error", msg, obj) }

// requests returns the per-request entries, skipping debug output.
func (l *recordingLogger) requests() []recordedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []recordedLog
	for _, e := range l.entries {
		if e.level != "debug" && strings.HasPrefix(e.msg, "crm api request") {
			out = append(out, e)
		}
	}
	return out
}

type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return t.next.RoundTrip(r)
}

func TestJoinURLUsesExactlyOneSlash(t *testing.T) {
	cases := []struct {
		base, endpoint, want string
	}{
		{"https://api.example.com/v1/", "/users", "https://api.example.com/v1/users"},
		{"https://api.example.com/v1", "users", "https://api.example.com/v1/users"},
		{"https://api.example.com/v1//", "//users", "https://api.example.com/v1/users"},
		{"https://api.example.com/v1", "/users/42/", "https://api.example.com/v1/users/42/"},
	}
	for _, tc := range cases {
		c, err := New(tc.base)
		require.NoError(t, err)
		assert.Equal(t, tc.want, joinURL(c.BaseURL(), tc.endpoint), "base=%q endpoint=%q", tc.base, tc.endpoint)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "   ", "ftp://example.com", "https://", "://bad"} {
		_, err := New(base)
		assert.Error(t, err, "base %q", base)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New("https://api.example.com/v1/")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1", c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Equal(t, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}, c.DefaultHeaders())
}

func TestDefaultHeadersIncludeBearerCredential(t *testing.T) {
	c, err := New("https://api.example.com", WithCredential("abc123"), WithTimeout(5*time.Second))
	require.NoError(t, err)

	headers := c.DefaultHeaders()
	assert.Equal(t, "Bearer abc123", headers["Authorization"])
	assert.Equal(t, 5*time.Second, c.Timeout())

	headers["Authorization"] = "mutated"
	assert.Equal(t, "Bearer abc123", c.DefaultHeaders()["Authorization"])
}

func TestRequestSendsDefaultAndOverriddenHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithCredential("abc123"))
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "unsubscribe", map[string]string{"email": "a@b.c"}, map[string]string{
		"content-type":    "application/vnd.api+json",
		"X-PARTNER-NAME":  "partner",
		"X-REQUEST-TOKEN": "tok",
	})
	require.NoError(t, err)

	assert.Equal(t, "application/vnd.api+json", got.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer abc123", got.Get("Authorization"))
	assert.Equal(t, "partner", got.Get("X-Partner-Name"))
	assert.Equal(t, "tok", got.Get("X-Request-Token"))
}

func TestRequestWithoutCredentialOmitsAuthorization(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/ping", nil)
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestPostReturnsDecodedJSON(t *testing.T) {
	var body []byte
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"id": 42}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/v1/")
	require.NoError(t, err)

	out, err := c.Post(context.Background(), "/users", map[string]any{"name": "Maria"}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/v1/users", path)
	assert.JSONEq(t, `{"name":"Maria"}`, string(body))
	assert.Equal(t, map[string]any{"id": float64(42)}, out)
}

func TestDoExposesStatusHeadersAndRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[1,"two",null]`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), Request{Method: "put", Endpoint: "items/1", Body: []int{1}})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "a, b", resp.Headers["X-Multi"])
	assert.Equal(t, []any{float64(1), "two", nil}, resp.Body)
	assert.Equal(t, `[1,"two",null]`, resp.Text())

	var decoded []any
	require.NoError(t, resp.Decode(&decoded))
	assert.Len(t, decoded, 3)
}

func TestNonJSONResponseReturnsRawText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "queued")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	out, err := c.Delete(context.Background(), "users/1", nil)
	require.NoError(t, err)
	assert.Equal(t, "queued", out)
}

func TestEmptyJSONBodyDecodesToNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	out, err := c.Get(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestQueryParamsAreSent(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Encode()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := &recordingLogger{}
	c, err := New(srv.URL, WithLogger(log))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "users", map[string]string{"limit": "10", "page": "2"})
	require.NoError(t, err)
	assert.Equal(t, "limit=10&page=2", query)

	entries := log.requests()
	require.Len(t, entries, 1)
	fields := entries[0].obj.(map[string]any)
	assert.Equal(t, srv.URL+"/users?limit=10&page=2", fields["url"])
}

func TestGetFailsWithHTTPErrorOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"not found"}`)
	}))
	defer srv.Close()

	log := &recordingLogger{}
	c, err := New(srv.URL, WithLogger(log))
	require.NoError(t, err)

	out, err := c.Get(context.Background(), "users/404", nil)
	require.Error(t, err)
	assert.Nil(t, out)

	httpErr, ok := IsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, `{"error":"not found"}`, httpErr.Text())
	assert.Equal(t, http.MethodGet, string(httpErr.Method))
	assert.Equal(t, srv.URL+"/users/404", httpErr.URL)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "http status 404")

	entries := log.requests()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusNotFound, entries[0].obj.(map[string]any)["status"])
}

func TestHTTPErrorSummarizesHTMLPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `<html><head><title>502 Bad Gateway</title><style>h1{}</style></head>
<body><h1>502 Bad Gateway</h1><p>nginx</p></body></html>`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "customer/1", map[string]any{}, nil)
	httpErr, ok := IsHTTPError(err)
	require.True(t, ok)
	assert.Contains(t, httpErr.Error(), "502 Bad Gateway nginx")
	assert.NotContains(t, httpErr.Error(), "<h1>")
	assert.Contains(t, httpErr.Text(), "<h1>")
}

func TestInvalidJSONFailsWithSerializationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "broken", nil)
	var serErr *SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.Equal(t, `{"id":`, serErr.Text())
	assert.Equal(t, http.StatusOK, serErr.StatusCode)
}

func TestTimeoutFailsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	log := &recordingLogger{}
	c, err := New(srv.URL, WithTimeout(200*time.Millisecond), WithLogger(log))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Get(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 200*time.Millisecond, timeoutErr.Timeout)
	assert.True(t, IsTimeout(err))
	assert.EqualValues(t, 1, hits.Load())

	entries := log.requests()
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].level)
}

func TestContextDeadlineIsReportedAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "slow", nil)
	assert.True(t, IsTimeout(err))
}

func TestConnectionRefusedFailsWithTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := New("http://" + addr)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "users", nil)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, IsTimeout(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestTLSFailureIsTransportError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "", nil)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestCancelledContextIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Get(ctx, "users", nil)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUnencodableBodyFailsBeforeSending(t *testing.T) {
	rt := &countingTransport{next: http.DefaultTransport}
	c, err := New("http://127.0.0.1:1", WithTransport(rt))
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "x", map[string]any{"bad": make(chan int)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode request body")
	assert.EqualValues(t, 0, rt.calls.Load())
}

func TestUnsupportedMethodIsRejected(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: "PATCH", Endpoint: "x"})
	assert.Error(t, err)

	m, err := ParseMethod(" delete ")
	require.NoError(t, err)
	assert.Equal(t, MethodDelete, m)
	_, err = ParseMethod("TRACE")
	assert.Error(t, err)
}

func TestSequentialCallsReuseConnection(t *testing.T) {
	var newConns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			newConns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	rt := &countingTransport{next: &http.Transport{MaxIdleConnsPerHost: 2}}
	c, err := New(srv.URL, WithTransport(rt))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "ping", nil)
		require.NoError(t, err)
	}

	assert.EqualValues(t, 2, rt.calls.Load())
	assert.EqualValues(t, 1, newConns.Load())
}
