package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/docindex/internal/config"
)

const userAgent = "docindex"

// StatusError carries a non-2xx response from GitHub.
type StatusError struct {
	StatusCode  int
	Status      string
	URL         string
	RateLimited bool
	RetryAfter  time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: %s: unexpected status %s", e.URL, e.Status)
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsRateLimited reports 429 responses and 403 responses with an exhausted quota.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.RateLimited
}

func IsForbidden(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusForbidden && !se.RateLimited
}

type ContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Sha         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	Sha  string `json:"sha"`
	Size int64  `json:"size"`
}

type TreeResponse struct {
	Sha       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type Client struct {
	http           *http.Client
	token          string
	apiBaseURL     string
	rawBaseURL     string
	archiveBaseURL string
}

func NewClient(cfg config.GithubConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:           &http.Client{Timeout: timeout},
		token:          strings.TrimSpace(cfg.Token),
		apiBaseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		rawBaseURL:     strings.TrimRight(cfg.RawBaseURL, "/"),
		archiveBaseURL: strings.TrimRight(cfg.ArchiveBaseURL, "/"),
	}
}

// ListContents lists one directory level at ref.
func (c *Client) ListContents(ctx context.Context, owner, repo, path, ref string) ([]ContentEntry, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiBaseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	u = withQuery(u, url.Values{"ref": []string{ref}})
	body, err := c.get(ctx, u, "application/vnd.github+json", 0)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var single ContentEntry
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode contents: %w", err)
		}
		return []ContentEntry{single}, nil
	}
	var entries []ContentEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode contents: %w", err)
	}
	return entries, nil
}

// GetTree returns the recursive tree of ref.
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) (*TreeResponse, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s", c.apiBaseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))
	u = withQuery(u, url.Values{"recursive": []string{"1"}})
	body, err := c.get(ctx, u, "application/vnd.github+json", 0)
	if err != nil {
		return nil, err
	}
	var tree TreeResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &tree, nil
}

func (c *Client) GetRaw(ctx context.Context, owner, repo, path, ref string) (string, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBaseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(ref), escapePath(path))
	body, err := c.get(ctx, u, "", 0)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DownloadArchive fetches the gzipped source tarball of a tag.
func (c *Client) DownloadArchive(ctx context.Context, owner, repo, tag string, maxBytes int64) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/%s/archive/refs/tags/%s.tar.gz", c.archiveBaseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(tag))
	return c.get(ctx, u, "", maxBytes)
}

func (c *Client) get(ctx context.Context, u, accept string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req, accept)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, newStatusError(u, resp)
	}
	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("github: %s exceeds %d bytes", u, maxBytes)
	}
	return body, nil
}

func (c *Client) addHeaders(req *http.Request, accept string) {
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", userAgent)
}

func newStatusError(u string, resp *http.Response) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: u}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		se.RateLimited = true
	case http.StatusForbidden:
		se.RateLimited = resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != ""
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	if se.RetryAfter == 0 && se.RateLimited {
		if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
					se.RetryAfter = wait
				}
			}
		}
	}
	return se
}

func escapePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func withQuery(u string, q url.Values) string {
	for k, v := range q {
		if len(v) == 0 || v[0] == "" {
			q.Del(k)
		}
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
