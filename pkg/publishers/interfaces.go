package publishers

import "context"

// Publisher sends call events to a downstream sink (HTTP, SQS, SNS, Pub/Sub).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// closer is implemented by publishers holding long-lived clients.
type closer interface {
	Close() error
}
