// Package resthook implements tombstone.Store against a PostgREST-style
// HTTP API: two tables, tombstones and tombstone_events, addressed under
// /rest/v1 with key-based auth. Transport details beyond that are the
// store operator's problem.
package resthook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cairnhq/cairn/pkg/tombstone"
)

const (
	tombstonesTable = "tombstones"
	eventsTable     = "tombstone_events"
)

// Client talks to the external tombstone store over HTTP.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a store client. url is the API root; key is sent as both
// the api key and bearer token.
func New(baseURL, key string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: tombstone.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/rest/v1/" + table
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("store returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, table string, prefer string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table), bytes.NewReader(data))
	if err != nil {
		return err
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	_, err = c.do(req)
	return err
}

// UpsertTombstone registers or refreshes a tombstone record. The identity
// column makes re-registration an update, not a duplicate.
func (c *Client) UpsertTombstone(ctx context.Context, rec tombstone.Record) error {
	return c.post(ctx, tombstonesTable, "resolution=merge-duplicates", rec)
}

// AppendEvent inserts one invocation event.
func (c *Client) AppendEvent(ctx context.Context, ev tombstone.Event) error {
	return c.post(ctx, eventsTable, "", ev)
}

// ListTombstones fetches records for a project with the given status,
// registered strictly before the cutoff.
func (c *Client) ListTombstones(ctx context.Context, project string, status tombstone.Status, registeredBefore time.Time) ([]tombstone.Record, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("project_name", "eq."+project)
	q.Set("status", "eq."+string(status))
	q.Set("registered_at", "lt."+registeredBefore.UTC().Format(time.RFC3339))
	q.Set("order", "registered_at.asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(tombstonesTable)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var records []tombstone.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("malformed store response: %w", err)
	}
	return records, nil
}

// ListEvents fetches all events referencing the given tombstone IDs.
func (c *Client) ListEvents(ctx context.Context, tombstoneIDs []string) ([]tombstone.Event, error) {
	if len(tombstoneIDs) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("tombstone_id", "in.("+strings.Join(tombstoneIDs, ",")+")")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(eventsTable)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var events []tombstone.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("malformed store response: %w", err)
	}
	return events, nil
}
