// Package github is the repository service collaborator: a thin client over
// the GitHub REST API for tree listings and file contents.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devfedhq/devboard/internal/config"
	"github.com/devfedhq/devboard/pkg/models"
)

// Sentinel errors for GitHub client failures.
var (
	ErrUnreachable = errors.New("github unreachable")
	ErrRequest     = errors.New("github request error")
	ErrTimeout     = errors.New("github request timeout")
)

// maxFileChars bounds decoded file content handed to callers.
const maxFileChars = 20000

// Client is the interface for fetching repository data.
type Client interface {
	Tree(ctx context.Context, req TreeRequest) (*models.RepoTree, error)
	FileContent(ctx context.Context, req FileRequest) (*models.RepoFile, error)
}

// TreeRequest defines parameters for a repository tree listing.
type TreeRequest struct {
	Owner      string
	Repo       string
	Branch     string // empty means the repo's default branch
	Recursive  bool
	PathPrefix string
	Limit      int
	Offset     int
}

// FileRequest defines parameters for a file content fetch.
type FileRequest struct {
	Owner  string
	Repo   string
	Path   string
	Branch string // empty means the repo's default branch
}

// HTTPClient implements Client using the GitHub REST API.
type HTTPClient struct {
	baseURL   string
	token     string
	fineToken string
	client    *http.Client
}

// NewHTTPClient creates a new GitHub HTTP client.
func NewHTTPClient(cfg config.GitHubConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		fineToken: cfg.FineToken,
		client:    &http.Client{Timeout: timeout},
	}
}

// Tree retrieves a condensed repository tree. The branch is resolved to a
// commit SHA through a chain of fallbacks (commits, branches, refs) because
// the three endpoints disagree for some repos.
func (c *HTTPClient) Tree(ctx context.Context, req TreeRequest) (*models.RepoTree, error) {
	branch := req.Branch
	if branch == "" {
		var err error
		branch, err = c.defaultBranch(ctx, req.Owner, req.Repo)
		if err != nil {
			return nil, err
		}
	}

	sha, err := c.resolveSHA(ctx, req.Owner, req.Repo, branch)
	if err != nil {
		return nil, err
	}

	recursive := "0"
	if req.Recursive {
		recursive = "1"
	}
	var treeResp treeResponse
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=%s", c.baseURL, req.Owner, req.Repo, sha, recursive)
	if err := c.getJSON(ctx, u, &treeResp); err != nil {
		return nil, err
	}

	entries := treeResp.Tree
	if req.PathPrefix != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.HasPrefix(e.Path, req.PathPrefix) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if req.Limit > 0 {
		start := req.Offset
		if start > len(entries) {
			start = len(entries)
		}
		end := start + req.Limit
		if end > len(entries) {
			end = len(entries)
		}
		entries = entries[start:end]
	}

	files := make([]models.TreeEntry, len(entries))
	for i, e := range entries {
		files[i] = models.TreeEntry{Path: e.Path, Type: e.Type, Size: e.Size}
	}

	return &models.RepoTree{
		Repo:   req.Owner + "/" + req.Repo,
		Branch: branch,
		Count:  len(files),
		Files:  files,
	}, nil
}

// FileContent retrieves one file, decoded from base64 and truncated to
// maxFileChars.
func (c *HTTPClient) FileContent(ctx context.Context, req FileRequest) (*models.RepoFile, error) {
	branch := req.Branch
	if branch == "" {
		var err error
		branch, err = c.defaultBranch(ctx, req.Owner, req.Repo)
		if err != nil {
			return nil, err
		}
	}

	var file contentsResponse
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, req.Owner, req.Repo, escapePath(req.Path), url.QueryEscape(branch))
	if err := c.getJSON(ctx, u, &file); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decode content: %v", ErrRequest, err)
	}
	content := string(raw)
	if len(content) > maxFileChars {
		// Back off to a rune boundary so the cut never leaves a partial
		// UTF-8 sequence at the end.
		cut := maxFileChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	return &models.RepoFile{
		Repo:    req.Owner + "/" + req.Repo,
		Branch:  branch,
		Path:    req.Path,
		Size:    len(content),
		Content: content,
	}, nil
}

func (c *HTTPClient) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var repoResp repoResponse
	u := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)
	if err := c.getJSON(ctx, u, &repoResp); err != nil {
		return "", err
	}
	if repoResp.DefaultBranch == "" {
		return "main", nil
	}
	return repoResp.DefaultBranch, nil
}

func (c *HTTPClient) resolveSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	var commit commitResponse
	u := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, owner, repo, url.PathEscape(branch))
	if err := c.getJSON(ctx, u, &commit); err == nil && commit.SHA != "" {
		return commit.SHA, nil
	}

	var br branchResponse
	u = fmt.Sprintf("%s/repos/%s/%s/branches/%s", c.baseURL, owner, repo, url.PathEscape(branch))
	if err := c.getJSON(ctx, u, &br); err == nil && br.Commit.SHA != "" {
		return br.Commit.SHA, nil
	}

	var ref refResponse
	u = fmt.Sprintf("%s/repos/%s/%s/git/refs/heads/%s", c.baseURL, owner, repo, url.PathEscape(branch))
	if err := c.getJSON(ctx, u, &ref); err != nil {
		return "", err
	}
	if ref.Object.SHA == "" {
		return "", fmt.Errorf("%w: could not resolve branch %q", ErrRequest, branch)
	}
	return ref.Object.SHA, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/vnd.github.v3+json")
	httpReq.Header.Set("User-Agent", "devboard")
	c.setAuth(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding github response: %w", err)
	}
	return nil
}

// setAuth prefers the fine-grained token when both are configured; the two
// use different authorization schemes.
func (c *HTTPClient) setAuth(req *http.Request) {
	switch {
	case c.fineToken != "":
		req.Header.Set("Authorization", "Bearer "+c.fineToken)
	case c.token != "":
		req.Header.Set("Authorization", "token "+c.token)
	}
}

// escapePath escapes a repo path segment-by-segment, keeping the slashes.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// --- GitHub response types ---

type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

type commitResponse struct {
	SHA string `json:"sha"`
}

type branchResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type treeResponse struct {
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

var _ Client = (*HTTPClient)(nil)
