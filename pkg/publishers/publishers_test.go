package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "secret")
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: HTTP
    enabled: true
    http:
      url: https://example.com/2
      method: put
      headers:
        Authorization: Bearer ${HOOK_TOKEN}
        X-Empty: "  "
  - id: queue
    type: sqs
    sqs:
      uri: https://sqs.eu-west-1.amazonaws.com/123/crm
      region: eu-west-1
      endpoint: http://localhost:4566
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "http2" || enabled[1].ID != "queue" {
		t.Fatalf("expected http2 and queue enabled, got %#v", enabled)
	}

	hook := enabled[0].HTTP
	if hook.Method != "PUT" || hook.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http defaults not applied: %#v", hook)
	}
	if hook.Headers["Authorization"] != "Bearer secret" {
		t.Fatalf("header env not expanded: %#v", hook.Headers)
	}
	if _, ok := hook.Headers["X-Empty"]; ok {
		t.Fatalf("blank headers should be dropped")
	}

	queue, ok := reg.ByID("queue")
	if !ok || queue.SQS.Region != "eu-west-1" || queue.SQS.Endpoint != "http://localhost:4566" {
		t.Fatalf("sqs config not parsed: %#v", queue.SQS)
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := map[string]PublisherConfig{
		"missing http":    {ID: "h1", Type: TypeHTTP},
		"sqs no region":   {ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "u"}},
		"sns no topic":    {ID: "s", Type: TypeSNS, SNS: &SNSPublisherConfig{AWSAccess: AWSAccess{Region: "r"}}},
		"pubsub no topic": {ID: "p", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "proj"}},
		"bad method":      {ID: "h2", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://x", Method: "PATCH"}},
	}
	for name, cfg := range cases {
		if err := validatePublisherConfig(sanitizePublisherConfig(cfg)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
