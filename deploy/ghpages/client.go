// Package ghpages publishes a file set through a Git-object-model static
// host: blobs are uploaded individually, referenced from a tree, committed,
// and the branch is force-updated to the new commit before static hosting
// is enabled on it. The publish model is full-replace, not incremental
// history.
package ghpages

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maktabahmedia/ZipToRepo/deploy"
)

// DefaultBaseURL is the hosted API endpoint.
const DefaultBaseURL = "https://api.github.com"

// Client is a minimal client for the Git-object HTTP surface the
// orchestrator drives.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client during construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, e.g. for tests or GitHub
// Enterprise installs.
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
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repo is the subset of repository metadata the orchestrator needs.
type Repo struct {
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
}

// TreeEntry references an uploaded blob from a tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// AuthenticatedUser returns the login of the token's user.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	var out struct {
		Login string `json:"login"`
	}
	if err := c.do(ctx, http.MethodGet, "/user", "authenticate", nil, &out); err != nil {
		return "", err
	}
	return out.Login, nil
}

// CreateRepo creates a repository for the authenticated user. A name
// conflict surfaces as a *deploy.ProviderError satisfying IsConflict.
func (c *Client) CreateRepo(ctx context.Context, name, description string, private bool) (Repo, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"private":     private,
		"auto_init":   false,
	}
	var out Repo
	if err := c.do(ctx, http.MethodPost, "/user/repos", "create repository", body, &out); err != nil {
		return Repo{}, err
	}
	if out.DefaultBranch == "" {
		out.DefaultBranch = "main"
	}
	return out, nil
}

// GetRepo fetches an existing repository.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (Repo, error) {
	var out Repo
	path := fmt.Sprintf("/repos/%s/%s", owner, name)
	if err := c.do(ctx, http.MethodGet, path, "read repository", nil, &out); err != nil {
		return Repo{}, err
	}
	if out.DefaultBranch == "" {
		out.DefaultBranch = "main"
	}
	return out, nil
}

// GetRefSHA returns the commit SHA a branch ref points at. A missing ref
// (empty repository) surfaces as a *deploy.ProviderError with status 404.
func (c *Client) GetRefSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	var out struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, branch)
	if err := c.do(ctx, http.MethodGet, path, "read branch ref", nil, &out); err != nil {
		return "", err
	}
	return out.Object.SHA, nil
}

// GetCommitTree returns the tree SHA of a commit.
func (c *Client) GetCommitTree(ctx context.Context, owner, repo, sha string) (string, error) {
	var out struct {
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/commits/%s", owner, repo, sha)
	if err := c.do(ctx, http.MethodGet, path, "read commit", nil, &out); err != nil {
		return "", err
	}
	return out.Tree.SHA, nil
}

// CreateBlob uploads one content object and returns its blob SHA.
func (c *Client) CreateBlob(ctx context.Context, owner, repo string, content []byte) (string, error) {
	body := map[string]any{
		"content":  base64.StdEncoding.EncodeToString(content),
		"encoding": "base64",
	}
	var out struct {
		SHA string `json:"sha"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/blobs", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, "upload blob", body, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateTree creates a tree referencing the given entries. When baseTree is
// non-empty the new tree is built on top of it.
func (c *Client) CreateTree(ctx context.Context, owner, repo string, entries []TreeEntry, baseTree string) (string, error) {
	body := map[string]any{"tree": entries}
	if baseTree != "" {
		body["base_tree"] = baseTree
	}
	var out struct {
		SHA string `json:"sha"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, "create tree", body, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateCommit creates a commit pointing at treeSHA. parent may be empty
// for the first commit of an empty repository.
func (c *Client) CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parent string) (string, error) {
	body := map[string]any{
		"message": message,
		"tree":    treeSHA,
	}
	if parent != "" {
		body["parents"] = []string{parent}
	}
	var out struct {
		SHA string `json:"sha"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/commits", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, "create commit", body, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// UpdateRef force-updates a branch ref to the given commit, creating the
// ref when the repository is empty.
func (c *Client) UpdateRef(ctx context.Context, owner, repo, branch, sha string, create bool) error {
	if create {
		body := map[string]any{
			"ref": "refs/heads/" + branch,
			"sha": sha,
		}
		path := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)
		return c.do(ctx, http.MethodPost, path, "create branch ref", body, nil)
	}
	body := map[string]any{
		"sha":   sha,
		"force": true,
	}
	path := fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, branch)
	return c.do(ctx, http.MethodPatch, path, "update branch ref", body, nil)
}

// EnablePages turns on static hosting for a branch. An already-enabled
// feature surfaces as a conflict *deploy.ProviderError.
func (c *Client) EnablePages(ctx context.Context, owner, repo, branch string) error {
	body := map[string]any{
		"source": map[string]string{"branch": branch, "path": "/"},
	}
	path := fmt.Sprintf("/repos/%s/%s/pages", owner, repo)
	return c.do(ctx, http.MethodPost, path, "enable pages", body, nil)
}

// PagesURL reads back the hosting URL of an already-configured site.
func (c *Client) PagesURL(ctx context.Context, owner, repo string) (string, error) {
	var out struct {
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pages", owner, repo)
	if err := c.do(ctx, http.MethodGet, path, "read pages site", nil, &out); err != nil {
		return "", err
	}
	return out.HTMLURL, nil
}

// do executes one API call, decoding a JSON response into dst when dst is
// non-nil. Non-2xx responses become *deploy.ProviderError with the most
// specific message available.
func (c *Client) do(ctx context.Context, method, path, op string, body any, dst any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ghpages: %s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("ghpages: %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "api request", "op", op, "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ghpages: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
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

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("ghpages: %s: decode response: %w", op, err)
	}
	return nil
}
