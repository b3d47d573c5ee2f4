package embassy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the TechHub Embassy REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Event represents an inbound orchestration event.
type Event struct {
	Type      string          `json:"event_type"`
	SessionID string          `json:"session_id,omitempty"`
	ProjectID string          `json:"project_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Outcome is the engine's reply to an event. Code carries workflow level
// failure branches such as NO_MATCH_FOUND; hard errors surface as APIError.
type Outcome struct {
	NextAction    string          `json:"next_action"`
	ProjectID     string          `json:"project_id,omitempty"`
	ProjectStatus string          `json:"project_status,omitempty"`
	Code          string          `json:"code,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Project mirrors the server side project record.
type Project struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id,omitempty"`
	Title     string       `json:"title,omitempty"`
	Status    string       `json:"status"`
	UseCaseID string       `json:"use_case_id,omitempty"`
	MatchIDs  []string     `json:"match_ids,omitempty"`
	History   []Transition `json:"history,omitempty"`
	Promoted  bool         `json:"promoted"`
	Version   int64        `json:"version"`
	CreatedAt int64        `json:"created_at"`
	UpdatedAt int64        `json:"updated_at"`
}

// Transition records a single lifecycle state change.
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Actor string `json:"actor,omitempty"`
	Note  string `json:"note,omitempty"`
	At    int64  `json:"at"`
}

// Candidate is a scored catalog resource inside a match.
type Candidate struct {
	ResourceID string  `json:"resource_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// BOMItem is one line of the generated bill of materials.
type BOMItem struct {
	ResourceID string `json:"resource_id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Capability string `json:"capability"`
	Quantity   int    `json:"quantity"`
	Required   bool   `json:"required"`
}

// ResourceMatch is a persisted matching result.
type ResourceMatch struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id"`
	UseCaseID  string      `json:"use_case_id"`
	Candidates []Candidate `json:"candidates"`
	BOM        []BOMItem   `json:"bom"`
	Notes      string      `json:"notes,omitempty"`
	CreatedAt  int64       `json:"created_at"`
}

// Stats aggregates project counts by lifecycle status.
type Stats struct {
	Total           int   `json:"total"`
	Draft           int   `json:"draft"`
	IntakeComplete  int   `json:"intake_complete"`
	Matching        int   `json:"matching"`
	Matched         int   `json:"matched"`
	Outlined        int   `json:"outlined"`
	Promoted        int   `json:"promoted"`
	Abandoned       int   `json:"abandoned"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// CatalogEntry is a read-only view of one catalog resource.
type CatalogEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Description string   `json:"description,omitempty"`
	Industries  []string `json:"industries,omitempty"`
	Link        string   `json:"link,omitempty"`
	UpdatedAt   int64    `json:"updated_at"`
}

// ListProjectsOptions narrows a project listing.
type ListProjectsOptions struct {
	Statuses  []string
	Owner     string
	Limit     int
	Offset    int
	Ascending bool
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("embassy api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("embassy api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the TechHub Embassy API. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// SubmitEvent sends an orchestration event and returns the engine's outcome.
func (c *Client) SubmitEvent(ctx context.Context, ev Event) (Outcome, error) {
	var outcome Outcome
	if err := c.post(ctx, "/api/v1/events", ev, &outcome); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// GetProject fetches a single project by identifier.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	if err := c.get(ctx, "/api/v1/projects/"+url.PathEscape(projectID), &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// ListProjects lists projects matching the given filters.
func (c *Client) ListProjects(ctx context.Context, opts ListProjectsOptions) ([]Project, error) {
	query := url.Values{}
	for _, status := range opts.Statuses {
		query.Add("status", status)
	}
	if opts.Owner != "" {
		query.Set("owner", opts.Owner)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Ascending {
		query.Set("order", "asc")
	}
	endpoint := "/api/v1/projects"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var projects []Project
	if err := c.get(ctx, endpoint, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListMatches fetches the match history of a project, oldest first.
func (c *Client) ListMatches(ctx context.Context, projectID string) ([]ResourceMatch, error) {
	var matches []ResourceMatch
	if err := c.get(ctx, "/api/v1/projects/"+url.PathEscape(projectID)+"/matches", &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// Stats returns aggregate project counts.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/v1/projects/stats", &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Catalog lists catalog entries, optionally restricted to one category.
func (c *Client) Catalog(ctx context.Context, category string) ([]CatalogEntry, error) {
	endpoint := "/api/v1/catalog"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}
	var entries []CatalogEntry
	if err := c.get(ctx, endpoint, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr APIError
		apiErr.StatusCode = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr}); err != nil {
				// try direct decode into apiErr if server returned flat payload
				_ = json.Unmarshal(data, &apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
