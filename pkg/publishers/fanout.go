package publishers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPublishTimeout bounds a single publisher's delivery of one event.
const DefaultPublishTimeout = 10 * time.Second

// Fanout delivers call events to every configured publisher, in order.
// A slow or failing sink never blocks the others past its own deadline.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
}

// NewFanout builds a Fanout over pubs. Nil entries are dropped.
func NewFanout(pubs []Publisher) *Fanout {
	f := &Fanout{timeout: DefaultPublishTimeout}
	for _, p := range pubs {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// WithTimeout sets the per-publisher delivery deadline. Zero disables it.
func (f *Fanout) WithTimeout(d time.Duration) *Fanout {
	if f != nil {
		f.timeout = d
	}
	return f
}

// Publish hands evt to each publisher and returns how many accepted it.
// Failures are joined into the returned error.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f.Size() == 0 {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, p := range f.publishers {
		if err := f.deliver(ctx, p, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

func (f *Fanout) deliver(ctx context.Context, p Publisher, evt Event) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return p.Publish(ctx, evt)
}

// Size returns the number of publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// IDs lists publisher ids in delivery order.
func (f *Fanout) IDs() []string {
	if f == nil {
		return nil
	}
	ids := make([]string, 0, len(f.publishers))
	for _, p := range f.publishers {
		ids = append(ids, p.ID())
	}
	return ids
}

// Close releases clients held by the publishers.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.publishers)
}
