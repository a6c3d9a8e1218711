package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Result is the consumed shape of a geocoding lookup. Only resolved
// coordinates and the formatted address matter to the rest of the system.
type Result struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
}

// Geocoder resolves a free-text address to coordinates. The event core never
// calls this; only the route layer does, before handing resolved coordinates
// to the core.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// ErrNoResults is returned when the upstream service finds nothing.
var ErrNoResults = errors.New("no geocoding results found")

// Client is a thin Nominatim-compatible HTTP geocoder.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "evently-backend")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var raw []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoResults
	}

	lat, err := strconv.ParseFloat(raw[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lat in geocoder response: %w", err)
	}
	lon, err := strconv.ParseFloat(raw[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lon in geocoder response: %w", err)
	}

	return &Result{Lat: lat, Lon: lon, FormattedAddress: raw[0].DisplayName}, nil
}
