// Package library reads published component metadata from the remote
// design library. It is read only: the versioning engine uses it to
// seed the previous snapshot for components with no local history.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/uistack/comp-vs/internal/types"
)

const defaultTimeout = 10 * time.Second

// Client talks to the remote library's REST endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the library at baseURL. Token is sent
// as a bearer credential when non-empty.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("library base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse library base url: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

type listResponse struct {
	Components []types.RemoteComponent `json:"components"`
}

// ListPublished returns the published components of a design file.
func (c *Client) ListPublished(ctx context.Context, fileKey string) ([]types.RemoteComponent, error) {
	if fileKey == "" {
		return nil, errors.New("file key is required")
	}

	endpoint := fmt.Sprintf("%s/v1/files/%s/components", c.baseURL, url.PathEscape(fileKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list published components: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list published components: %s: %s", resp.Status, string(body))
	}

	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode library response: %w", err)
	}
	return parsed.Components, nil
}
