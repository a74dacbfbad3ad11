// Package supabase is the client for the configuration store: a
// PostgREST gateway in front of the service_agent schema. Every
// operation is a single synchronous round trip; there is no caching
// and no retry.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// schema is the Postgres schema holding the configurations and
// operation_logs tables.
const schema = "service_agent"

// Wildcard in a scope matches every service.
const Wildcard = "*"

// ConfigEntry is one row of the configurations table. Keys are
// globally unique; writes upsert on conflict.
type ConfigEntry struct {
	ID          string   `json:"id,omitempty"`
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	Scope       []string `json:"scope"`
	IsSecret    bool     `json:"is_secret"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
	UpdatedBy   *string  `json:"updated_by,omitempty"`
}

// UpsertParams are the writable fields of a configuration entry.
type UpsertParams struct {
	Key         string
	Value       string
	Scope       []string
	IsSecret    bool
	Category    *string
	Description *string
	UpdatedBy   string
}

// Operation is one append-only audit row. Writes are best-effort; this
// system never reads them back.
type Operation struct {
	Service   string
	Operation string
	Success   bool
	Message   string
	UserID    string
	UserEmail string
}

// APIError is a non-2xx response from the PostgREST gateway.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL, serviceKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// GetServiceConfig returns the effective configuration for a service:
// the key/value union of every entry whose scope contains the service
// name or the wildcard.
func (c *Client) GetServiceConfig(ctx context.Context, service string) (map[string]string, error) {
	query := url.Values{
		"select": {"key,value"},
		"or":     {fmt.Sprintf("(scope.cs.{%s},scope.cs.{%s})", service, Wildcard)},
	}

	var rows []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "configurations", query, "", nil, &rows); err != nil {
		return nil, err
	}

	cfg := make(map[string]string, len(rows))
	for _, row := range rows {
		cfg[row.Key] = row.Value
	}
	return cfg, nil
}

const entryColumns = "id,key,value,is_secret,scope,category,description,updated_at"

// GetAll returns every configuration entry, ordered by category then key.
func (c *Client) GetAll(ctx context.Context) ([]ConfigEntry, error) {
	query := url.Values{
		"select": {entryColumns},
		"order":  {"category,key"},
	}

	var entries []ConfigEntry
	if err := c.do(ctx, http.MethodGet, "configurations", query, "", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetByKey returns a single entry, or nil when the key does not exist.
func (c *Client) GetByKey(ctx context.Context, key string) (*ConfigEntry, error) {
	query := url.Values{
		"select": {entryColumns},
		"key":    {"eq." + key},
	}

	var entries []ConfigEntry
	if err := c.do(ctx, http.MethodGet, "configurations", query, "", nil, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Upsert inserts or replaces an entry by key and returns the stored row.
func (c *Client) Upsert(ctx context.Context, p UpsertParams) (*ConfigEntry, error) {
	body := map[string]any{
		"key":         p.Key,
		"value":       p.Value,
		"scope":       p.Scope,
		"is_secret":   p.IsSecret,
		"category":    p.Category,
		"description": p.Description,
		"updated_by":  p.UpdatedBy,
	}

	var entries []ConfigEntry
	err := c.do(ctx, http.MethodPost, "configurations", nil,
		"resolution=merge-duplicates,return=representation", body, &entries)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("supabase: upsert of %q returned no representation", p.Key)
	}
	return &entries[0], nil
}

// Delete removes an entry by key.
func (c *Client) Delete(ctx context.Context, key string) error {
	query := url.Values{"key": {"eq." + key}}
	return c.do(ctx, http.MethodDelete, "configurations", query, "", nil, nil)
}

// LogOperation appends one audit row. The row ID is generated here so
// a failed write can still be correlated from local logs.
func (c *Client) LogOperation(ctx context.Context, op Operation) error {
	id := uuid.NewString()
	body := map[string]any{
		"id":                 id,
		"service_name":       op.Service,
		"operation":          op.Operation,
		"success":            op.Success,
		"message":            truncate(op.Message, 1000),
		"performed_by":       nullable(op.UserID),
		"performed_by_email": nullable(op.UserEmail),
	}

	if err := c.do(ctx, http.MethodPost, "operation_logs", nil, "return=minimal", body, nil); err != nil {
		return fmt.Errorf("operation log %s: %w", id, err)
	}

	c.logger.Debug().
		Str("log_id", id).
		Str("service", op.Service).
		Str("operation", op.Operation).
		Bool("success", op.Success).
		Msg("operation logged")
	return nil
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, prefer string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Profile", schema)
	req.Header.Set("Content-Profile", schema)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
