package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charliek/sidecarhost/internal/api"
)

// Client is an HTTP client for the sidecarhost API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	// Try to load token from file
	token, _ := loadToken("") // Ignore error - token may not exist

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetStatus gets host and sidecar status
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Greet asks the running host for a greeting
func (c *Client) Greet(name string) (string, error) {
	var resp api.GreetResponse
	if err := c.get("/api/v1/greet?name="+url.QueryEscape(name), &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// StartSidecar spawns the sidecar
func (c *Client) StartSidecar() error {
	var resp api.SuccessResponse
	return c.post("/api/v1/sidecar/start", &resp)
}

// StopSidecar shuts the sidecar down, leaving the host running
func (c *Client) StopSidecar() error {
	var resp api.SuccessResponse
	return c.post("/api/v1/sidecar/stop", &resp)
}

// Shutdown shuts down the host
func (c *Client) Shutdown() error {
	var resp api.SuccessResponse
	return c.post("/api/v1/shutdown", &resp)
}

// LogParams contains parameters for log queries
type LogParams struct {
	Stream  string
	Lines   int
	Pattern string
	Regex   bool
}

func (p LogParams) query(withLines bool) string {
	query := url.Values{}
	if p.Stream != "" {
		query.Set("stream", p.Stream)
	}
	if withLines && p.Lines > 0 {
		query.Set("lines", fmt.Sprintf("%d", p.Lines))
	}
	if p.Pattern != "" {
		query.Set("pattern", p.Pattern)
	}
	if p.Regex {
		query.Set("regex", "true")
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}

// GetLogs gets recent sidecar output with optional filtering
func (c *Client) GetLogs(params LogParams) (*api.LogsResponse, error) {
	var resp api.LogsResponse
	if err := c.get("/api/v1/logs"+params.query(true), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamLogs streams sidecar output and calls the callback for each line
// until ctx is cancelled or the host closes the stream
func (c *Client) StreamLogs(ctx context.Context, params LogParams, callback func(api.LogLineResponse)) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/logs/stream"+params.query(false), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.addAuthHeader(req)

	// The stream is long-lived; only ctx bounds it
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			var entry api.LogLineResponse
			if err := json.Unmarshal([]byte(data), &entry); err == nil {
				callback(entry)
			}
		}
	}
}

func (c *Client) get(path string, v interface{}) error {
	return c.do("GET", path, v)
}

func (c *Client) post(path string, v interface{}) error {
	return c.do("POST", path, v)
}

func (c *Client) do(method, path string, v interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if method == "POST" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// APIError is an error response returned by the host
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Error
	}
	return apiErr
}

// addAuthHeader adds the Authorization header if a token is available
func (c *Client) addAuthHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
