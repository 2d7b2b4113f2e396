// Package contentrepo is the client for the destination content
// repository. Listings become documents there; photos become uploaded
// assets referenced from the document.
package contentrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/andrevros/imovelsync/internal/models"
)

// AssetRef identifies an uploaded asset inside the content repository.
type AssetRef struct {
	ID  string `json:"_id"`
	URL string `json:"url"`
}

// Document is the payload for a new listing document. Blocks carry the
// description converted from legacy markup; Assets reference uploaded
// photos in display order.
type Document struct {
	Property *models.Property `json:"property"`
	Blocks   []Block          `json:"blocks,omitempty"`
	Assets   []AssetRef       `json:"assets,omitempty"`
}

// Client calls the content repository HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// New creates a client for the repository at baseURL, authenticating
// every request with the given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// UploadAsset uploads one photo and returns its repository reference.
func (c *Client) UploadAsset(ctx context.Context, filename string, data []byte) (*AssetRef, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	var ref AssetRef
	if err := c.do(req, &ref); err != nil {
		return nil, fmt.Errorf("upload asset %s: %w", filename, err)
	}
	return &ref, nil
}

// CreateDocument creates a listing document and returns its id.
func (c *Client) CreateDocument(ctx context.Context, doc *Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	var created struct {
		ID string `json:"_id"`
	}
	if err := c.do(req, &created); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create document: repository returned no id")
	}
	return created.ID, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
