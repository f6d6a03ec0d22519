package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout applies when no positive timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client executes JSON requests against a single base API. The underlying
// resty client and its connection pool are shared by every call, which makes a
// Client safe for concurrent use; its configuration never changes after New.
type Client struct {
	baseURL  string
	timeout  time.Duration
	defaults map[string]string
	client   *resty.Client
	log      Logger
}

type options struct {
	credential string
	timeout    time.Duration
	transport  http.RoundTripper
	log        Logger
}

// Option customizes a Client at construction.
type Option func(*options)

// WithCredential sets the bearer token sent in the default Authorization header.
func WithCredential(token string) Option {
	return func(o *options) { o.credential = strings.TrimSpace(token) }
}

// WithTimeout sets the per-request timeout. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger that receives one entry per request.
func WithLogger(log Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTransport replaces the pooled default transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New builds a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("base url must include a host")
	}

	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	log := ensureLogger(o.log)

	defaults := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if o.credential != "" {
		defaults["Authorization"] = "Bearer " + o.credential
	}

	return &Client{
		baseURL:  base,
		timeout:  o.timeout,
		defaults: defaults,
		client:   newRestyBaseClient(o.timeout, o.transport, log),
		log:      log,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// DefaultHeaders returns a copy of the headers sent with every request.
func (c *Client) DefaultHeaders() map[string]string {
	out := make(map[string]string, len(c.defaults))
	for k, v := range c.defaults {
		out[k] = v
	}
	return out
}

// Do sends req and returns the decoded response. Non-2xx answers fail with
// *HTTPError, timeouts with *TimeoutError, network failures with
// *TransportError and unparsable JSON bodies with *SerializationError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := Method(strings.ToUpper(string(req.Method)))
	if !method.Valid() {
		return nil, fmt.Errorf("unsupported http method %q", req.Method)
	}

	target := joinURL(c.baseURL, req.Endpoint)
	logURL := fullURL(target, req.Params)
	headers := mergeHeaders(c.defaults, req.Headers)

	r := c.client.R().
		SetContext(ctx).
		SetHeaders(headers)
	if len(req.Params) > 0 {
		r.SetQueryParams(req.Params)
	}
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body for %s %s: %w", method, logURL, err)
		}
		r.SetBody(payload)
	}

	c.log.DebugObj("crm api request", "http_request", map[string]any{
		"method":  string(method),
		"url":     logURL,
		"headers": headerNames(headers),
	})

	start := time.Now()
	resp, err := r.Execute(string(method), target)
	elapsed := time.Since(start)
	if err != nil {
		failure := c.classify(method, logURL, err)
		c.log.ErrorObj("crm api request failed", "http_request", map[string]any{
			"method":     string(method),
			"url":        logURL,
			"error":      failure.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		})
		return nil, failure
	}

	c.log.InfoObj("crm api request", "http_request", map[string]any{
		"method":     string(method),
		"url":        logURL,
		"status":     resp.StatusCode(),
		"elapsed_ms": elapsed.Milliseconds(),
	})

	raw := resp.Body()
	if !resp.IsSuccess() {
		return nil, &HTTPError{
			Method:     method,
			URL:        logURL,
			StatusCode: resp.StatusCode(),
			Header:     resp.Header(),
			Body:       raw,
		}
	}

	body, err := decodeBody(resp.Header().Get("Content-Type"), raw)
	if err != nil {
		return nil, &SerializationError{
			Method:     method,
			URL:        logURL,
			StatusCode: resp.StatusCode(),
			Body:       raw,
			Err:        err,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Headers:    flattenHeaders(resp.Header()),
		Body:       body,
		Raw:        raw,
	}, nil
}

// Get sends a GET request and returns the decoded body.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (any, error) {
	return c.body(c.Do(ctx, Request{Method: MethodGet, Endpoint: endpoint, Params: params}))
}

// Post sends body as JSON and returns the decoded response body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, headers map[string]string) (any, error) {
	return c.body(c.Do(ctx, Request{Method: MethodPost, Endpoint: endpoint, Body: body, Headers: headers}))
}

// Put sends body as JSON and returns the decoded response body.
func (c *Client) Put(ctx context.Context, endpoint string, body any, headers map[string]string) (any, error) {
	return c.body(c.Do(ctx, Request{Method: MethodPut, Endpoint: endpoint, Body: body, Headers: headers}))
}

// Delete sends a DELETE request and returns the decoded body.
func (c *Client) Delete(ctx context.Context, endpoint string, headers map[string]string) (any, error) {
	return c.body(c.Do(ctx, Request{Method: MethodDelete, Endpoint: endpoint, Headers: headers}))
}

func (c *Client) body(resp *Response, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// classify maps a resty/net/http failure onto the client's error taxonomy.
func (c *Client) classify(method Method, target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Method: method, URL: target, Timeout: c.timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Method: method, URL: target, Timeout: c.timeout, Err: err}
	}
	return &TransportError{Method: method, URL: target, Err: err}
}
