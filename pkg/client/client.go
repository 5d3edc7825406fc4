// Package client provides a Go SDK for the Corius HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/webanalyst/corius/pkg/models"
)

// Client calls the Corius HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3719"
	APIKey     string       // optional; set for X-API-Key / api_key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL. APIKey is optional; when
// set, requests carry the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Items lists items, optionally filtered by type, container, or parent.
func (c *Client) Items(ctx context.Context, itemType, container, parent string, includeArchived bool) ([]models.Item, error) {
	q := url.Values{}
	if itemType != "" {
		q.Set("type", itemType)
	}
	if container != "" {
		q.Set("container", container)
	}
	if parent != "" {
		q.Set("parent", parent)
	}
	if includeArchived {
		q.Set("archived", "true")
	}
	path := "/items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Item
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Item fetches one item by id.
func (c *Client) Item(ctx context.Context, id string) (models.Item, error) {
	var out models.Item
	err := c.doJSON(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, &out)
	return out, err
}

// RecentItems lists the most recently updated items, newest first.
func (c *Client) RecentItems(ctx context.Context, limit int) ([]models.Item, error) {
	var out []models.Item
	err := c.doJSON(ctx, http.MethodGet, "/items/recent?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

// Databases lists all databases.
func (c *Client) Databases(ctx context.Context) ([]models.Database, error) {
	var out []models.Database
	err := c.doJSON(ctx, http.MethodGet, "/databases", nil, &out)
	return out, err
}

// Database fetches one database by id.
func (c *Client) Database(ctx context.Context, id string) (models.Database, error) {
	var out models.Database
	err := c.doJSON(ctx, http.MethodGet, "/databases/"+url.PathEscape(id), nil, &out)
	return out, err
}

// QueryDatabase evaluates a saved view and/or ad-hoc filters over a
// database and returns the rows in view order.
func (c *Client) QueryDatabase(ctx context.Context, id string, req models.QueryRequest) ([]models.Item, error) {
	var out models.QueryResponse
	err := c.doJSON(ctx, http.MethodPost, "/databases/"+url.PathEscape(id)+"/query", req, &out)
	return out.Rows, err
}

// Dispatch submits one action and returns its structured outcome.
func (c *Client) Dispatch(ctx context.Context, req models.ActionRequest) (models.ActionOutcome, error) {
	var out models.ActionOutcome
	err := c.doJSON(ctx, http.MethodPost, "/actions", req, &out)
	return out, err
}

// Confirm accepts or rejects a pending action by token.
func (c *Client) Confirm(ctx context.Context, req models.ConfirmRequest) (models.ActionOutcome, error) {
	var out models.ActionOutcome
	err := c.doJSON(ctx, http.MethodPost, "/actions/confirm", req, &out)
	return out, err
}

// Audit returns the most recent audit entries, newest first.
func (c *Client) Audit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := c.doJSON(ctx, http.MethodGet, "/audit?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}
