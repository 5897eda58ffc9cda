package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/model"
)

// ClipWorker defines the interface to the remote clip-generation worker.
type ClipWorker interface {
	SubmitClipJob(ctx context.Context, req *SubmitClipJobRequest) (*SubmitClipJobResponse, error)
	GetJobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error)
	CountClips(ctx context.Context, jobID string) (int, error)
	ListClips(ctx context.Context, jobID string) ([]model.Clip, error)
}

// WorkerClient implements ClipWorker against the worker HTTP API.
type WorkerClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// SubmitClipJobRequest represents the request to start clip generation.
type SubmitClipJobRequest struct {
	MediaID         string  `json:"media_id"`
	SourceURL       string  `json:"source_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SubmitClipJobResponse is the submission result. The worker either accepts
// the job asynchronously (JobID set) or, for short sources, finishes inline
// (ClipsCreated set). Callers must branch on JobID presence.
type SubmitClipJobResponse struct {
	JobID        string `json:"job_id,omitempty"`
	ClipsCreated *int   `json:"clips_created,omitempty"`
}

// JobStatusResponse is the cheap status-only poll payload.
type JobStatusResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type clipCountResponse struct {
	Count int `json:"count"`
}

// NewWorkerClient creates a new clip worker API client
func NewWorkerClient(cfg *config.WorkerConfig) *WorkerClient {
	return &WorkerClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// SubmitClipJob initiates clip generation for a source asset
func (c *WorkerClient) SubmitClipJob(ctx context.Context, req *SubmitClipJobRequest) (*SubmitClipJobResponse, error) {
	var result SubmitClipJobResponse
	if err := c.post(ctx, "/v1/clips/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJobStatus retrieves the terminal-status field of a generation job.
// Deliberately fetches no clip payload so polling stays cheap and idempotent.
func (c *WorkerClient) GetJobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	endpoint := fmt.Sprintf("/v1/clips/jobs/%s/status", url.PathEscape(jobID))
	var result JobStatusResponse
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CountClips returns the number of clip rows produced by a job
func (c *WorkerClient) CountClips(ctx context.Context, jobID string) (int, error) {
	endpoint := fmt.Sprintf("/v1/clips/count?job_id=%s", url.QueryEscape(jobID))
	var result clipCountResponse
	if err := c.get(ctx, endpoint, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// ListClips returns a job's clips ordered by descending virality score
func (c *WorkerClient) ListClips(ctx context.Context, jobID string) ([]model.Clip, error) {
	endpoint := "/v1/clips"
	if jobID != "" {
		endpoint = fmt.Sprintf("/v1/clips?job_id=%s", url.QueryEscape(jobID))
	}
	var result []model.Clip
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// post sends a POST request with JSON body
func (c *WorkerClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *WorkerClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *WorkerClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[Clip Worker] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Clip Worker] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Clip Worker] ✗ %s %s — failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Clip Worker] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("clip worker error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Clip Worker] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *WorkerClient) IsConfigured() bool {
	return c.apiKey != ""
}
