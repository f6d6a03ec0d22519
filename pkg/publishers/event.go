package publishers

import (
	"time"
)

// Event reports the outcome of one call against a CRM API.
type Event struct {
	ProfileID  string    `json:"profile_id"`
	Operation  string    `json:"operation"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent constructs an Event for a finished call. A nil err marks the call as successful.
func NewEvent(profileID, operation, method, url string, status int, elapsed time.Duration, err error) Event {
	evt := Event{
		ProfileID:  profileID,
		Operation:  operation,
		Method:     method,
		URL:        url,
		StatusCode: status,
		OK:         err == nil,
		DurationMs: elapsed.Milliseconds(),
		OccurredAt: time.Now().UTC(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}

// attributes returns the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"profile_id": e.ProfileID,
		"operation":  e.Operation,
	}
}
