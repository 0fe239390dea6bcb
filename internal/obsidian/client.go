// Package obsidian implements the HTTP client for the Obsidian Local REST API.
package obsidian

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/apperr"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/retry"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the REST API root, e.g. https://127.0.0.1:27124.
	BaseURL string
	// APIKey is sent as a Bearer token on every request.
	APIKey string
	// InsecureSkipVerify disables TLS verification. The plugin serves a
	// self-signed certificate, so this is commonly needed.
	InsecureSkipVerify bool
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// Retry is the per-call retry policy for transient failures.
	Retry retry.Policy
}

// Client talks to the Obsidian Local REST API.
type Client struct {
	baseURL string
	apiKey  string
	policy  retry.Policy
	http    *http.Client
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy := opts.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy
	}

	transport := http.DefaultTransport
	if opts.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		policy:  policy,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// listEntry is one element of a directory listing response. Directories
// carry a trailing slash in their path.
type listEntry struct {
	Path  string `json:"path"`
	Mtime int64  `json:"mtime"` // epoch milliseconds
	Size  int64  `json:"size"`
}

type listResponse struct {
	Files []listEntry `json:"files"`
}

// noteJSON mirrors the application/vnd.olrapi.note+json representation.
type noteJSON struct {
	Path        string                 `json:"path"`
	Content     string                 `json:"content"`
	Frontmatter map[string]interface{} `json:"frontmatter"`
	Tags        []string               `json:"tags"`
	Stat        struct {
		Ctime int64 `json:"ctime"`
		Mtime int64 `json:"mtime"`
		Size  int64 `json:"size"`
	} `json:"stat"`
}

// ListAll walks the vault directory hierarchy breadth-first and returns
// metadata for every .md file.
func (c *Client) ListAll(ctx context.Context) ([]FileStat, error) {
	var out []FileStat

	queue := []string{""}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := c.listDir(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("obsidian: list %q: %w", dir, err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Path, "/") {
				queue = append(queue, e.Path)
				continue
			}
			if !strings.HasSuffix(e.Path, ".md") {
				continue
			}
			out = append(out, FileStat{
				Path:         e.Path,
				Size:         e.Size,
				LastModified: time.UnixMilli(e.Mtime),
			})
		}
	}
	return out, nil
}

func (c *Client) listDir(ctx context.Context, dir string) ([]listEntry, error) {
	var resp listResponse
	err := c.doRetry(ctx, func() error {
		return c.getJSON(ctx, c.vaultURL(dir)+"/", "application/json", &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Fetch returns the full note at path.
func (c *Client) Fetch(ctx context.Context, path string) (*Note, error) {
	var raw noteJSON
	err := c.doRetry(ctx, func() error {
		return c.getJSON(ctx, c.vaultURL(path), "application/vnd.olrapi.note+json", &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("obsidian: fetch %q: %w", path, err)
	}
	if raw.Path == "" {
		raw.Path = path
	}
	return &Note{
		Path:        raw.Path,
		Content:     raw.Content,
		Frontmatter: raw.Frontmatter,
		Tags:        raw.Tags,
		Stat: FileStat{
			Path:         raw.Path,
			Size:         raw.Stat.Size,
			LastModified: time.UnixMilli(raw.Stat.Mtime),
		},
	}, nil
}

// ReadFile returns the raw Markdown content at path.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	var content string
	err := c.doRetry(ctx, func() error {
		body, err := c.do(ctx, http.MethodGet, c.vaultURL(path), "text/markdown", "", nil)
		if err != nil {
			return err
		}
		content = body
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("obsidian: read %q: %w", path, err)
	}
	return content, nil
}

// WriteFile creates or overwrites the file at path.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	err := c.doRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodPut, c.vaultURL(path), "", "text/markdown", strings.NewReader(content))
		return err
	})
	if err != nil {
		return fmt.Errorf("obsidian: write %q: %w", path, err)
	}
	return nil
}

// AppendFile appends content to the file at path, creating it if absent.
func (c *Client) AppendFile(ctx context.Context, path, content string) error {
	err := c.doRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodPost, c.vaultURL(path), "", "text/markdown", strings.NewReader(content))
		return err
	})
	if err != nil {
		return fmt.Errorf("obsidian: append %q: %w", path, err)
	}
	return nil
}

// DeleteFile removes the file at path.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	err := c.doRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodDelete, c.vaultURL(path), "", "", nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("obsidian: delete %q: %w", path, err)
	}
	return nil
}

// Search runs the vault's simple text search.
func (c *Client) Search(ctx context.Context, query string, contextLength int) ([]SearchResult, error) {
	if contextLength <= 0 {
		contextLength = 100
	}
	u := fmt.Sprintf("%s/search/simple/?query=%s&contextLength=%d",
		c.baseURL, url.QueryEscape(query), contextLength)

	var hits []struct {
		Filename string  `json:"filename"`
		Score    float64 `json:"score"`
		Matches  []struct {
			Context string `json:"context"`
		} `json:"matches"`
	}
	err := c.doRetry(ctx, func() error {
		body, err := c.do(ctx, http.MethodPost, u, "application/json", "", nil)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(body), &hits)
	})
	if err != nil {
		return nil, fmt.Errorf("obsidian: search %q: %w", query, err)
	}

	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		r := SearchResult{Path: h.Filename, Score: h.Score}
		if len(h.Matches) > 0 {
			r.Context = h.Matches[0].Context
		}
		out = append(out, r)
	}
	return out, nil
}

// vaultURL builds the /vault URL for path, escaping each segment.
func (c *Client) vaultURL(path string) string {
	if path == "" {
		return c.baseURL + "/vault"
	}
	segs := strings.Split(strings.TrimSuffix(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return c.baseURL + "/vault/" + strings.Join(segs, "/")
}

func (c *Client) doRetry(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, c.policy, apperr.IsTransient, fn)
}

func (c *Client) getJSON(ctx context.Context, u, accept string, target interface{}) error {
	body, err := c.do(ctx, http.MethodGet, u, accept, "", nil)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), target)
}

// do performs one HTTP request and returns the response body. HTTP and
// transport failures are mapped onto the apperr taxonomy: 404 becomes
// ErrNotFound, network errors and 5xx become ErrRemoteUnavailable.
func (c *Client) do(ctx context.Context, method, u, accept, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", apperr.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", apperr.ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return string(data), nil
	case resp.StatusCode == http.StatusNotFound:
		return "", apperr.ErrNotFound
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", apperr.ErrRemoteUnavailable, resp.StatusCode)
	default:
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErrorMessage(data))
	}
}

// apiErrorMessage extracts the REST API's error message, falling back to
// the raw body.
func apiErrorMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(data))
}
