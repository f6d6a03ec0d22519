package publishers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/samvad-hq/crm-relay/pkg/httpclient"
)

type httpPublisher struct {
	id       string
	method   httpclient.Method
	endpoint string
	headers  map[string]string
	client   *httpclient.Client
	typ      string
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	method, err := httpclient.ParseMethod(cfg.HTTP.Method)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}

	u, err := url.Parse(cfg.HTTP.URL)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: invalid url: %w", cfg.ID, err)
	}

	client, err := httpclient.New(u.Scheme+"://"+u.Host,
		httpclient.WithTimeout(time.Duration(cfg.HTTP.TimeoutSeconds)*time.Second),
		httpclient.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}

	return &httpPublisher{
		id:       cfg.ID,
		typ:      TypeHTTP,
		method:   method,
		endpoint: u.RequestURI(),
		headers:  cfg.HTTP.Headers,
		client:   client,
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return h.typ }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	_, err := h.client.Do(ctx, httpclient.Request{
		Method:   h.method,
		Endpoint: h.endpoint,
		Headers:  h.headers,
		Body:     evt,
	})
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	return nil
}
