package belkonsdk

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
)

// Client is a minimal Belkon HTTP API client.
type Client struct {
	BaseURL     string
	OrgID       string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, orgID string) *Client {
	return &Client{
		BaseURL: baseURL,
		OrgID:   orgID,
		Timeout: 10 * time.Second,
	}
}

// Plan represents an action plan (partial).
type Plan struct {
	ID     string `json:"id"`
	OrgID  string `json:"org_id"`
	Name   string `json:"name"`
	Year   int    `json:"year"`
	Active bool   `json:"active"`
}

// Action represents an action row (partial).
type Action struct {
	ID          string  `json:"id"`
	PlanID      string  `json:"plan_id"`
	ConditionID string  `json:"condition_id"`
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	TargetDate  *string `json:"target_date,omitempty"`
}

// RollupStats mirrors the global statistics block of the rollup response.
type RollupStats struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	InProgress   int     `json:"in_progress"`
	NotStarted   int     `json:"not_started"`
	Delayed      int     `json:"delayed"`
	Ongoing      int     `json:"ongoing"`
	Continuous   int     `json:"continuous"`
	Cancelled    int     `json:"cancelled"`
	NoAction     int     `json:"no_action"`
	CompletedPct float64 `json:"completed_pct"`
	DelayedPct   float64 `json:"delayed_pct"`
}

// Rollup is the grouped compliance view. Components are kept as raw JSON so
// the SDK does not chase the full tree shape.
type Rollup struct {
	PlanID     string            `json:"plan_id"`
	Components []json.RawMessage `json:"components"`
	Stats      RollupStats       `json:"stats"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// EventList wraps the events endpoint response.
type EventList struct {
	Events []Event `json:"events"`
	NextID int64   `json:"next_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Plans lists the organization's action plans.
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	var resp []Plan
	err := c.do(ctx, http.MethodGet, c.orgPath("plans"), nil, &resp)
	return resp, err
}

// CreateAction creates an action under a plan.
func (c *Client) CreateAction(ctx context.Context, planID string, body map[string]any) (Action, error) {
	var resp Action
	endpoint := c.orgPath(fmt.Sprintf("plans/%s/actions", url.PathEscape(planID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateAction replaces an action's fields.
func (c *Client) UpdateAction(ctx context.Context, actionID string, body map[string]any) (Action, error) {
	var resp Action
	endpoint := c.orgPath(fmt.Sprintf("actions/%s", url.PathEscape(actionID)))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// Rollup fetches the grouped rollup for a plan. Query parameters follow the
// API's filter names (component_id, status, search, sort, direction, ...).
func (c *Client) Rollup(ctx context.Context, planID string, query url.Values) (Rollup, error) {
	endpoint := c.orgPath(fmt.Sprintf("plans/%s/rollup", url.PathEscape(planID)))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var resp Rollup
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns audit events after the given id.
func (c *Client) Events(ctx context.Context, after int64, limit int) (EventList, error) {
	endpoint := c.orgPath("events")
	q := url.Values{}
	if after > 0 {
		q.Set("after", fmt.Sprint(after))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp EventList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ExportXLSX streams the XLSX export for a plan to w.
func (c *Client) ExportXLSX(ctx context.Context, planID string, w io.Writer) error {
	endpoint := c.orgPath(fmt.Sprintf("plans/%s/rollup/export.xlsx", url.PathEscape(planID)))
	return c.download(ctx, endpoint, w)
}

// ExportPDF streams the PDF export for a plan to w.
func (c *Client) ExportPDF(ctx context.Context, planID string, w io.Writer) error {
	endpoint := c.orgPath(fmt.Sprintf("plans/%s/rollup/export.pdf", url.PathEscape(planID)))
	return c.download(ctx, endpoint, w)
}

func (c *Client) download(ctx context.Context, endpoint string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := c.newRequest(ctx, method, endpoint, &buf)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) orgPath(p string) string {
	org := url.PathEscape(c.OrgID)
	return fmt.Sprintf("v0/orgs/%s/%s", org, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
