package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reel/internal/failure"
	"reel/internal/workflow"
)

// Client talks to a running `reel serve`.
type Client struct {
	base string
	http *http.Client
}

// NewClient targets addr, either host:port or a full http URL.
func NewClient(addr string, httpClient *http.Client) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("api address not configured")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(parsed.String(), "/"), http: httpClient}, nil
}

// RemoteError is a non-2xx response from the server. It unwraps to the
// failure marker matching its classification so callers can use errors.Is.
type RemoteError struct {
	Status   int
	Response ErrorResponse
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Response.Error)
}

func (e *RemoteError) Unwrap() error {
	switch e.Response.Classification {
	case failure.ClassInvalidInput:
		return failure.ErrInvalidInput
	case failure.ClassAccessDenied:
		return failure.ErrAccessDenied
	case failure.ClassToolUnavailable:
		return failure.ErrToolUnavailable
	case failure.ClassIncompatibleInputs:
		return failure.ErrIncompatibleInputs
	case failure.ClassProcessFailure:
		return failure.ErrProcessFailure
	case failure.ClassAlreadyRunning:
		return failure.ErrAlreadyRunning
	case "not_found":
		return workflow.ErrJobNotFound
	default:
		return nil
	}
}

// Health fetches dependency status.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
	return resp, err
}

// Scan submits a duplicate-filename scan.
func (c *Client) Scan(ctx context.Context, root string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, "/api/scan", ScanRequest{Root: root}, &resp)
	return resp, err
}

// Merge submits a merge.
func (c *Client) Merge(ctx context.Context, req MergeRequest) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, "/api/merge", req, &resp)
	return resp, err
}

// ListJobs returns every job the server knows in submission order.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Job fetches a single job.
func (c *Client) Job(ctx context.Context, id string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CancelJob requests cancellation and returns the job as of the request.
func (c *Client) CancelJob(ctx context.Context, id string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp, err
}

// ForgetJob drops a finished job from the server.
func (c *Client) ForgetJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact reel server at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &RemoteError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&remote.Response); err != nil {
			remote.Response.Error = http.StatusText(resp.StatusCode)
		}
		return remote
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
