package client

import (
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

// MediaLibrary defines the read-only interface to the media library service
// that owns uploaded source assets.
type MediaLibrary interface {
	GetSourceMedia(ctx context.Context, mediaID string) (*model.SourceMedia, error)
}

// LibraryClient implements MediaLibrary against the library HTTP API.
type LibraryClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewLibraryClient creates a new media library API client
func NewLibraryClient(cfg *config.LibraryConfig) *LibraryClient {
	return &LibraryClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// GetSourceMedia fetches a source asset record by id
func (c *LibraryClient) GetSourceMedia(ctx context.Context, mediaID string) (*model.SourceMedia, error) {
	endpoint := fmt.Sprintf("%s/v1/media/%s", c.baseURL, url.PathEscape(mediaID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[Media Library] → GET %s", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("source media %s not found", mediaID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media library error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var media model.SourceMedia
	if err := json.Unmarshal(respBody, &media); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &media, nil
}
