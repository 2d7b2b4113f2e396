// Package legacy talks to the old site's photo file server. The server
// has no listing API: photos are discovered by probing the deterministic
// filename scheme "{propertyId}_{sequence:03d}.jpg".
package legacy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// Probes answer fast or not at all, so they get a short deadline.
	defaultProbeTimeout = 3 * time.Second
	// Transfers of full-size photos over the legacy link can be slow.
	defaultFetchTimeout = 60 * time.Second
)

// ErrNotFound means the probed photo does not exist on the file server.
var ErrNotFound = fmt.Errorf("photo not found on legacy file server")

// Client accesses photos on the legacy file server.
type Client struct {
	probeClient *http.Client
	fetchClient *http.Client
	baseURL     string
}

// New creates a client for the file server at baseURL with default
// timeouts.
func New(baseURL string) *Client {
	return NewWithTimeouts(baseURL, defaultProbeTimeout, defaultFetchTimeout)
}

// NewWithTimeouts creates a client with explicit probe and fetch
// deadlines. Zero values fall back to the defaults.
func NewWithTimeouts(baseURL string, probeTimeout, fetchTimeout time.Duration) *Client {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Client{
		probeClient: &http.Client{Timeout: probeTimeout},
		fetchClient: &http.Client{Timeout: fetchTimeout},
		baseURL:     baseURL,
	}
}

// PhotoFilename is the legacy naming scheme: property id, underscore,
// zero-padded three digit sequence starting at 1.
func PhotoFilename(propertyID int64, seq int) string {
	return fmt.Sprintf("%d_%03d.jpg", propertyID, seq)
}

// PhotoURL builds the full file server URL for one photo.
func (c *Client) PhotoURL(propertyID int64, seq int) string {
	return fmt.Sprintf("%s/%s", c.baseURL, PhotoFilename(propertyID, seq))
}

// Exists probes for a photo with a HEAD request. Only a definite 404 is
// reported as absent; network errors propagate so callers can retry.
func (c *Client) Exists(ctx context.Context, propertyID int64, seq int) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.PhotoURL(propertyID, seq), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("probe %s: unexpected status %d", PhotoFilename(propertyID, seq), resp.StatusCode)
	}
}

// Fetch downloads one photo. Returns ErrNotFound for a 404 so callers can
// distinguish a gap in the sequence from a transfer failure.
func (c *Client) Fetch(ctx context.Context, propertyID int64, seq int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PhotoURL(propertyID, seq), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.fetchClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", PhotoFilename(propertyID, seq), resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
