package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ImageStore is the capability interface over the external image CDN. Upload
// happens before event creation; Discard is called after an event delete
// leaves a stored image orphaned. Both are route-layer glue, not core.
type ImageStore interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
	Discard(ctx context.Context, imageURL string) error
}

// Client talks to a CDN-style HTTP API keyed by a bearer token.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	endpoint := fmt.Sprintf("%s/images?name=%s", c.baseURL, url.QueryEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, content)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image upload returned status %d", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("image upload response missing Location header")
	}
	return location, nil
}

// Discard asks the CDN to drop a stored image. Callers treat failure as
// non-fatal: the primary operation already committed.
func (c *Client) Discard(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, imageURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("image discard returned status %d", resp.StatusCode)
	}
	return nil
}
