package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Method is one of the verbs the client accepts.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

// Valid reports whether m is a supported verb.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// ParseMethod normalizes a verb name such as "post" into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported http method %q", s)
	}
	return m, nil
}

// Request describes a single call. It is built per call and discarded afterwards.
type Request struct {
	Method   Method
	Endpoint string
	Headers  map[string]string // merged over the client defaults, per-call wins
	Body     any               // JSON-encoded when non-nil
	Params   map[string]string
}

// joinURL concatenates base and endpoint with exactly one slash between them.
func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// fullURL renders the URL as it goes on the wire, query string included.
func fullURL(target string, params map[string]string) string {
	if len(params) == 0 {
		return target
	}
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, v)
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + q.Encode()
}

// mergeHeaders overlays override on top of base using canonical header keys.
func mergeHeaders(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range override {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[http.CanonicalHeaderKey(key)] = v
	}
	return out
}

// flattenHeaders joins multi-valued headers with ", ".
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(h))
	for k, vals := range h {
		out[k] = strings.Join(vals, ", ")
	}
	return out
}

// headerNames lists header keys in a stable order for logging.
func headerNames(h map[string]string) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
