// Package store is a thin client for the external tenant record store,
// speaking the PostgREST dialect. All state lives in the store; this process
// keeps nothing durable in memory between requests.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"kdsops/internal/config"
)

// ErrNoRows is returned when a single-row lookup matches nothing.
var ErrNoRows = errors.New("store: no rows in result set")

// Client talks to the tenant store with the fixed service key. Unlike the
// identity provider client, it carries no per-user auth context, so a single
// instance is safe to share across concurrent operations.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a store client from configuration
func New(cfg config.StoreConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "store")),
	}
}

// selectRows issues GET /{table}?{query} and decodes the JSON array into out.
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, table, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("store: build request: %w", err)
	}
	c.setHeaders(req, false)

	return c.do(req, table, out)
}

// insertRow issues POST /{table} and decodes the returned representation.
func (c *Client) insertRow(ctx context.Context, table string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("store: encode body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("store: build request: %w", err)
	}
	c.setHeaders(req, true)

	return c.do(req, table, out)
}

// updateRows issues PATCH /{table}?{query} with the given column changes and
// decodes the updated rows. The returned row count is how conditional writes
// (compare-and-set) observe whether they won: zero rows means the filter no
// longer matched.
func (c *Client) updateRows(ctx context.Context, table string, query url.Values, changes interface{}) (int, error) {
	payload, err := json.Marshal(changes)
	if err != nil {
		return 0, fmt.Errorf("store: encode changes: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, table, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("store: build request: %w", err)
	}
	c.setHeaders(req, true)

	var rows []json.RawMessage
	if err := c.do(req, table, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *Client) setHeaders(req *http.Request, withBody bool) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if withBody {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
}

func (c *Client) do(req *http.Request, table string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", req.Method, table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("store: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(req.Context(), "store request failed",
			slog.String("table", table),
			slog.String("method", req.Method),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("store: %s %s: status %d", req.Method, table, resp.StatusCode)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("store: decode response: %w", err)
		}
	}
	return nil
}

// one narrows a slice lookup to exactly zero-or-one row
func one[T any](rows []T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}
