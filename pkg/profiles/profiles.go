package profiles

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/crm-relay/pkg/httpclient"
	"gopkg.in/yaml.v3"
)

// Package profiles loads named API profiles (YAML/JSON) describing how to reach a CRM API.

const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthHeader = "header"

	defaultTimeoutSeconds = 30
)

// Profile describes one downstream API.
type Profile struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	BaseURL        string            `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Auth           Auth              `json:"auth" yaml:"auth"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
}

// Auth selects how credentials are attached. Values may reference the
// environment with ${VAR}.
type Auth struct {
	Type     string `json:"type" yaml:"type"`
	Token    string `json:"token" yaml:"token"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Header   string `json:"header" yaml:"header"`
}

type registryFile struct {
	Profiles []Profile `json:"profiles" yaml:"profiles"`
}

// Registry holds the loaded profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles []Profile
	idx      map[string]Profile
}

// LoadRegistry loads profiles from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("profiles file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profiles file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Profiles...)
}

// NewRegistry sanitizes and validates the given profiles.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, errors.New("no profiles configured")
	}

	reg := &Registry{
		profiles: make([]Profile, len(profiles)),
		idx:      make(map[string]Profile, len(profiles)),
	}
	for i := range profiles {
		p := sanitizeProfile(profiles[i])
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		reg.profiles[i] = p
		reg.idx[p.ID] = p
	}
	return reg, nil
}

type unmarshalFn func([]byte, any) error

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("profiles file format not recognized (expected YAML or JSON)")
}

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s profiles: %w", name, err)
	}
	return reg, nil
}

func sanitizeProfile(p Profile) Profile {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = defaultTimeoutSeconds
	}

	p.Auth.Type = strings.ToLower(strings.TrimSpace(p.Auth.Type))
	if p.Auth.Type == "" {
		p.Auth.Type = AuthNone
	}
	p.Auth.Token = expand(p.Auth.Token)
	p.Auth.Username = expand(p.Auth.Username)
	p.Auth.Password = expand(p.Auth.Password)
	p.Auth.Header = strings.TrimSpace(p.Auth.Header)

	if len(p.Headers) > 0 {
		headers := make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			headers[key] = expand(v)
		}
		p.Headers = headers
	}
	return p
}

func expand(s string) string {
	return strings.TrimSpace(os.ExpandEnv(strings.TrimSpace(s)))
}

func validateProfile(p Profile) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for profile %q", p.ID)
	}
	switch p.Auth.Type {
	case AuthNone:
	case AuthBearer:
		if p.Auth.Token == "" {
			return fmt.Errorf("auth.token is required for bearer profile %q", p.ID)
		}
	case AuthBasic:
		if p.Auth.Username == "" {
			return fmt.Errorf("auth.username is required for basic profile %q", p.ID)
		}
	case AuthHeader:
		if p.Auth.Header == "" {
			return fmt.Errorf("auth.header is required for header profile %q", p.ID)
		}
		if p.Auth.Token == "" {
			return fmt.Errorf("auth.token is required for header profile %q", p.ID)
		}
	default:
		return fmt.Errorf("unsupported auth type %q for profile %q", p.Auth.Type, p.ID)
	}
	return nil
}

// ByID returns the profile by id.
func (r *Registry) ByID(id string) (Profile, bool) {
	if r == nil {
		return Profile{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.idx[id]
	return p, ok
}

// All returns all profiles in file order.
func (r *Registry) All() []Profile {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Timeout returns the per-request timeout for the profile.
func (p Profile) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// NewClient builds the httpclient.Client for the profile. Bearer tokens become
// the client credential; other auth types travel as per-call headers.
func (p Profile) NewClient(log httpclient.Logger) (*httpclient.Client, error) {
	opts := []httpclient.Option{
		httpclient.WithTimeout(p.Timeout()),
		httpclient.WithLogger(log),
	}
	if p.Auth.Type == AuthBearer {
		opts = append(opts, httpclient.WithCredential(p.Auth.Token))
	}
	client, err := httpclient.New(p.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.ID, err)
	}
	return client, nil
}

// RequestHeaders returns the headers sent with every call through the profile.
func (p Profile) RequestHeaders() map[string]string {
	out := make(map[string]string, len(p.Headers)+1)
	for k, v := range p.Headers {
		out[k] = v
	}
	switch p.Auth.Type {
	case AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(p.Auth.Username + ":" + p.Auth.Password))
		out["Authorization"] = "Basic " + creds
	case AuthHeader:
		out[p.Auth.Header] = p.Auth.Token
	}
	return out
}
