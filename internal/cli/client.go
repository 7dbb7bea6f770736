package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// WorkerIdentityHeader must match the server's authenticated identity header
const WorkerIdentityHeader = "X-Worker-Identity"

// --- Response types ---

// GenerationResponse is the outcome of a generation cycle
type GenerationResponse struct {
	Success            bool   `json:"success"`
	Reason             string `json:"reason,omitempty"`
	AssignmentsCreated int    `json:"assignmentsCreated"`
	WorkersInvolved    int    `json:"workersInvolved"`
	CycleID            string `json:"cycleId,omitempty"`
}

// StatsResponse holds assignment counts
type StatsResponse struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Expired   int64 `json:"expired"`
}

// LeaseResponse is one open lease
type LeaseResponse struct {
	TaskID     string    `json:"task_id"`
	AssignedAt time.Time `json:"assigned_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LeasesResponse lists open leases
type LeasesResponse struct {
	Total  int             `json:"total"`
	Leases []LeaseResponse `json:"leases"`
}

// CheckResponse is one check result
type CheckResponse struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	WorkerID  string `json:"worker_id"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Timestamp string `json:"timestamp"`
}

// CheckListResponse is a page of check results
type CheckListResponse struct {
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Results []CheckResponse `json:"results"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// --- Client ---

// Client is an HTTP client for the assignment API
type Client struct {
	baseURL    string
	identity   string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL. identity, when set, is
// sent as the worker identity header.
func NewClient(baseURL, identity string) *Client {
	return &Client{
		baseURL:  baseURL,
		identity: identity,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Generate triggers one generation cycle. A failed cycle is returned as a
// response, not an error, when the server sends its structured result.
func (c *Client) Generate() (*GenerationResponse, error) {
	resp, err := c.do(http.MethodPost, "/api/v1/assignments/generate")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, c.checkError(resp)
	}

	var result GenerationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// Stats returns assignment counts
func (c *Client) Stats() (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/assignments/stats", nil, &stats)
	return &stats, err
}

// Leases returns the open leases of workerID, or of the client identity when
// workerID is empty
func (c *Client) Leases(workerID string) (*LeasesResponse, error) {
	params := url.Values{}
	if workerID != "" {
		params.Set("worker_id", workerID)
	}

	var leases LeasesResponse
	err := c.get("/api/v1/leases", params, &leases)
	return &leases, err
}

// Checks returns a page of a task's check history
func (c *Client) Checks(taskID string, page, limit int) (*CheckListResponse, error) {
	params := url.Values{}
	params.Set("task_id", taskID)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var checks CheckListResponse
	err := c.get("/api/v1/checks", params, &checks)
	return &checks, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.identity != "" {
		req.Header.Set(WorkerIdentityHeader, c.identity)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Message == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error, er.Message)
}
