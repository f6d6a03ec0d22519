package httpclient

import (
	"bytes"
	"encoding/json"
)

// Response is the decoded result of a successful call.
type Response struct {
	StatusCode int
	Headers    map[string]string
	// Body holds the decoded JSON value (map, slice, scalar or nil) when the
	// server declared a JSON content type, and the raw text otherwise.
	Body any
	Raw  []byte
}

// Text returns the raw response body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Raw)
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// decodeBody parses raw according to the response content type.
func decodeBody(contentType string, raw []byte) (any, error) {
	if !isJSONContentType(contentType) {
		return string(raw), nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
