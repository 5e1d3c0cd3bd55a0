package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Client talks to the backend REST surface. It implements
// DocumentStore, ObjectStore, SessionProvider and FunctionCaller.
type Client struct {
	baseURL string
	role    string
	http    *http.Client

	mu       sync.Mutex
	identity Identity
}

// NewClient builds a Client for the given backend and participant role.
func NewClient(baseURL, role string) *Client {
	return &Client{
		baseURL: baseURL,
		role:    role,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// EnsureSession signs in anonymously on first use and reuses the
// session afterwards.
func (c *Client) EnsureSession(ctx context.Context) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity.Token != "" {
		return c.identity, nil
	}

	body, err := json.Marshal(map[string]string{"role": c.role})
	if err != nil {
		return Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/anonymous", bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("anonymous sign-in: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("anonymous sign-in: unexpected status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("anonymous sign-in: decode: %w", err)
	}

	c.identity = identity
	return identity, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	identity, err := c.EnsureSession(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+identity.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Query fetches documents matching equality filters.
func (c *Client) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var result struct {
		Documents []Document `json:"documents"`
	}
	path := "/v1/collections/" + url.PathEscape(collection) + "/query"
	if err := c.doJSON(ctx, http.MethodPost, path, q, &result); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return result.Documents, nil
}

// Get fetches a single document by id.
func (c *Client) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	path := "/v1/collections/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &doc); err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Add persists a new document and returns its server-assigned id.
func (c *Client) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	path := "/v1/collections/" + url.PathEscape(collection)
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"data": data}, &result); err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return result.ID, nil
}

// Update merges a partial record into an existing document.
func (c *Client) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	path := "/v1/collections/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPatch, path, map[string]any{"data": patch}, nil); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// Remove deletes a document by id.
func (c *Client) Remove(ctx context.Context, collection, id string) error {
	path := "/v1/collections/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, id, err)
	}
	return nil
}

// Upload stores a binary object and returns its opaque file id.
func (c *Client) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	identity, err := c.EnsureSession(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("path", path); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("upload %s: read file: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/objects", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+identity.Token)
	if contentType != "" {
		req.Header.Set("X-Upload-Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload %s: unexpected status %d", path, resp.StatusCode)
	}

	var result struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("upload %s: decode: %w", path, err)
	}
	return result.FileID, nil
}

// ResolveTempURLs exchanges file ids for short-lived fetchable URLs.
func (c *Client) ResolveTempURLs(ctx context.Context, fileIDs []string) ([]ResolvedFile, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var result struct {
		Files []ResolvedFile `json:"files"`
	}
	payload := map[string]any{"file_ids": fileIDs}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/objects/resolve", payload, &result); err != nil {
		return nil, fmt.Errorf("resolve temp urls: %w", err)
	}
	return result.Files, nil
}

// Call invokes a named backend function.
func (c *Client) Call(ctx context.Context, name string, payload any) error {
	path := "/v1/functions/" + url.PathEscape(name)
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"data": payload}, nil); err != nil {
		return fmt.Errorf("call function %s: %w", name, err)
	}
	return nil
}
