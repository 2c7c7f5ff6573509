// Package cashost publishes a file set to a content-addressed hosting
// service. Files are registered as a path→hash map; the host answers with
// the subset of hashes it does not already hold, and only those objects are
// uploaded. A finalized version is then released as the live deployment.
package cashost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maktabahmedia/ZipToRepo/deploy"
)

// DefaultCacheControl is the cache policy applied to all served paths of a
// version.
const DefaultCacheControl = "public, max-age=300"

// Client is a minimal client for the content-addressed hosting HTTP
// surface.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client during construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger configures structured debug logging.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client authenticating with the given token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterResult is the host's answer to a file registration: the hashes it
// still needs and where each one should be uploaded.
type RegisterResult struct {
	Required   []string          `json:"required"`
	UploadURLs map[string]string `json:"uploadUrls"`
}

// CreateVersion opens a new site version with the given cache-control
// policy applied to all served paths.
func (c *Client) CreateVersion(ctx context.Context, site, cacheControl string) (string, error) {
	body := map[string]any{"cacheControl": cacheControl}
	var out struct {
		ID string `json:"id"`
	}
	p := fmt.Sprintf("/v1/sites/%s/versions", site)
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+p, "create version", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// RegisterFiles submits the full path→hash map for a version and returns
// the deduplicated upload requirements.
func (c *Client) RegisterFiles(ctx context.Context, versionID string, files map[string]string) (RegisterResult, error) {
	body := map[string]any{"files": files}
	var out RegisterResult
	p := fmt.Sprintf("/v1/versions/%s/files", versionID)
	if err := c.doJSON(ctx, http.MethodPut, c.baseURL+p, "register files", body, &out); err != nil {
		return RegisterResult{}, err
	}
	return out, nil
}

// UploadObject POSTs one object's raw bytes to its upload URL. The content
// type is derived from the path extension, falling back to sniffing the
// bytes.
func (c *Client) UploadObject(ctx context.Context, uploadURL, filePath string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cashost: upload object: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentTypeFor(filePath, data))

	c.logger.DebugContext(ctx, "upload object", "path", filePath, "bytes", len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashost: upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.providerError("upload object", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// FinalizeVersion transitions a version out of the uploading state. It must
// complete before the version can be released.
func (c *Client) FinalizeVersion(ctx context.Context, versionID string) error {
	p := fmt.Sprintf("/v1/versions/%s/finalize", versionID)
	return c.doJSON(ctx, http.MethodPost, c.baseURL+p, "finalize version", map[string]any{}, nil)
}

// CreateRelease activates a finalized version as the live deployment and
// returns the public URL.
func (c *Client) CreateRelease(ctx context.Context, site, versionID string) (string, error) {
	body := map[string]any{"versionId": versionID}
	var out struct {
		URL string `json:"url"`
	}
	p := fmt.Sprintf("/v1/sites/%s/releases", site)
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+p, "create release", body, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// contentTypeFor prefers the path extension and falls back to detection
// over the bytes.
func contentTypeFor(filePath string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(filePath)); ct != "" {
		return ct
	}
	return mimetype.Detect(data).String()
}

func (c *Client) doJSON(ctx context.Context, method, url, op string, body any, dst any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cashost: %s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("cashost: %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "api request", "op", op, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashost: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.providerError(op, resp)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("cashost: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) providerError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	msg := ""
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil {
		msg = apiErr.Message
	}
	return &deploy.ProviderError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}
