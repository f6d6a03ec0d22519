package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/crm-relay/internal/config"
	"github.com/samvad-hq/crm-relay/internal/logger"
	"github.com/samvad-hq/crm-relay/internal/storage"
	"github.com/samvad-hq/crm-relay/pkg/httpclient"
	"github.com/samvad-hq/crm-relay/pkg/profiles"
	"github.com/samvad-hq/crm-relay/pkg/publishers"
)

const (
	OpRequest        = "request"
	OpUnsubscribe    = "unsubscribe"
	OpCustomerUpdate = "customer_update"
)

// Relay executes CRM operations through per-profile HTTP clients, remembers
// idempotent deliveries and reports every call to the configured publishers.
type Relay struct {
	profiles *profiles.Registry
	clients  map[string]*httpclient.Client
	fanout   *publishers.Fanout
	store    storage.Store
	log      logger.Logger
}

// Result summarizes a CRM operation.
type Result struct {
	ProfileID  string `json:"profile_id"`
	Operation  string `json:"operation"`
	Subject    string `json:"subject"`
	Skipped    bool   `json:"skipped,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// NewRelay builds a relay runtime from config files.
func NewRelay(ctx context.Context, cfg *config.Config, log logger.Logger) (*Relay, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	profileReg, err := profiles.LoadRegistry(cfg.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("load profiles registry: %w", err)
	}
	profileIDs := make([]string, 0, len(profileReg.All()))
	for _, p := range profileReg.All() {
		profileIDs = append(profileIDs, p.ID)
	}
	log.InfoObj("profiles registry loaded", "profiles_meta", map[string]any{
		"count": len(profileIDs),
		"ids":   profileIDs,
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	relay, err := New(profileReg, store, fanout, log)
	if err != nil {
		_ = store.Close()
		_ = fanout.Close()
		return nil, err
	}
	return relay, nil
}

// buildFanout loads the optional publishers file. An empty path disables event publishing.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		log.DebugObj("no publishers file configured; call events disabled", "publishers_file", path)
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// New assembles a Relay from already-built parts, creating one HTTP client per profile.
func New(reg *profiles.Registry, store storage.Store, fanout *publishers.Fanout, log logger.Logger) (*Relay, error) {
	if reg == nil {
		return nil, fmt.Errorf("profiles registry must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if store == nil {
		store, _ = storage.NewStore("none", "", storage.Options{})
	}

	clients := make(map[string]*httpclient.Client)
	for _, p := range reg.All() {
		client, err := p.NewClient(log)
		if err != nil {
			return nil, err
		}
		clients[p.ID] = client
	}

	return &Relay{
		profiles: reg,
		clients:  clients,
		fanout:   fanout,
		store:    store,
		log:      log,
	}, nil
}

// Profiles returns the configured profiles.
func (r *Relay) Profiles() []profiles.Profile { return r.profiles.All() }

// Call performs an arbitrary request through the profile.
func (r *Relay) Call(ctx context.Context, profileID string, req httpclient.Request) (*httpclient.Response, error) {
	return r.call(ctx, OpRequest, profileID, req)
}

// Unsubscribe asks the profile's API to unsubscribe email. Deliveries already
// made inside the store TTL are skipped unless force is set.
func (r *Relay) Unsubscribe(ctx context.Context, profileID, email string, force bool) (Result, error) {
	email = strings.TrimSpace(email)
	res := Result{ProfileID: profileID, Operation: OpUnsubscribe, Subject: email}
	if email == "" || !strings.Contains(email, "@") {
		return res, fmt.Errorf("invalid email %q", email)
	}

	key := storage.DeliveryKey(OpUnsubscribe, profileID, email)
	if force {
		if err := r.store.Forget(key); err != nil {
			return res, fmt.Errorf("forget delivery: %w", err)
		}
	}
	seen, err := r.store.Seen(key)
	if err != nil {
		return res, fmt.Errorf("check delivery: %w", err)
	}
	if seen {
		r.log.InfoObj("unsubscribe already delivered; skipping", "delivery", map[string]any{
			"profile_id": profileID,
			"email":      email,
		})
		res.Skipped = true
		return res, nil
	}

	resp, err := r.call(ctx, OpUnsubscribe, profileID, httpclient.Request{
		Method:   httpclient.MethodPost,
		Endpoint: "unsubscribe",
		Body:     map[string]string{"email": email},
	})
	if err != nil {
		res.StatusCode = httpclient.StatusCode(err)
		return res, err
	}
	res.StatusCode = resp.StatusCode
	res.Body = resp.Body

	if err := r.store.Mark(key); err != nil {
		r.log.ErrorObj("record delivery failed", "error", err.Error())
	}
	return res, nil
}

// UpdateCustomer sends attrs as the customer's attribute set.
func (r *Relay) UpdateCustomer(ctx context.Context, profileID, customerID string, attrs map[string]any) (Result, error) {
	customerID = strings.TrimSpace(customerID)
	res := Result{ProfileID: profileID, Operation: OpCustomerUpdate, Subject: customerID}
	if customerID == "" {
		return res, errors.New("customer id is required")
	}
	if len(attrs) == 0 {
		return res, errors.New("at least one attribute is required")
	}

	resp, err := r.call(ctx, OpCustomerUpdate, profileID, httpclient.Request{
		Method:   httpclient.MethodPost,
		Endpoint: "customer/" + url.PathEscape(customerID),
		Body:     attrs,
	})
	if err != nil {
		res.StatusCode = httpclient.StatusCode(err)
		return res, err
	}
	res.StatusCode = resp.StatusCode
	res.Body = resp.Body
	return res, nil
}

// Close releases the store and publisher clients.
func (r *Relay) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.store.Close(), r.fanout.Close())
}

func (r *Relay) call(ctx context.Context, op, profileID string, req httpclient.Request) (*httpclient.Response, error) {
	profile, ok := r.profiles.ByID(profileID)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", profileID)
	}
	client := r.clients[profile.ID]

	req.Headers = overlay(profile.RequestHeaders(), req.Headers)

	start := time.Now()
	resp, err := client.Do(ctx, req)
	elapsed := time.Since(start)

	status := httpclient.StatusCode(err)
	if resp != nil {
		status = resp.StatusCode
	}
	target := client.BaseURL() + "/" + strings.TrimLeft(req.Endpoint, "/")
	r.publish(ctx, publishers.NewEvent(profile.ID, op, string(req.Method), target, status, elapsed, err))

	return resp, err
}

// publish reports evt to the fanout. Failures are logged and never returned.
func (r *Relay) publish(ctx context.Context, evt publishers.Event) {
	if r.fanout.Size() == 0 {
		return
	}
	if _, err := r.fanout.Publish(ctx, evt); err != nil {
		r.log.WarnObj("call event publish failed", "publish_error", map[string]any{
			"profile_id": evt.ProfileID,
			"operation":  evt.Operation,
			"publishers": r.fanout.IDs(),
			"error":      err.Error(),
		})
	}
}

// overlay returns base with override applied on top, keyed case-insensitively.
func overlay(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range override {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}
