package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.github.com"

// GitHubClient opens pull requests through the REST API.
type GitHubClient struct {
	base   string
	token  string
	repo   string // owner/name
	http   *http.Client
	logger *slog.Logger
}

type GitHubOption func(*GitHubClient)

// WithAPIBase overrides the API endpoint, for GitHub Enterprise or tests.
func WithAPIBase(base string) GitHubOption {
	return func(c *GitHubClient) {
		if base != "" {
			c.base = strings.TrimSuffix(base, "/")
		}
	}
}

func WithGitHubHTTPClient(h *http.Client) GitHubOption {
	return func(c *GitHubClient) {
		if h != nil {
			c.http = h
		}
	}
}

func WithGitHubLogger(l *slog.Logger) GitHubOption {
	return func(c *GitHubClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewGitHubClient targets a repository in owner/name form.
func NewGitHubClient(token, repo string, opts ...GitHubOption) *GitHubClient {
	c := &GitHubClient{
		base:   defaultAPIBase,
		token:  token,
		repo:   repo,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PullRequest is the subset of the API response the caller needs.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// EnsurePullRequest opens a PR from head to base, or returns the
// existing open PR for that branch when one is found.
func (c *GitHubClient) EnsurePullRequest(ctx context.Context, head, base, title, body string) (*PullRequest, error) {
	owner, _, ok := strings.Cut(c.repo, "/")
	if !ok {
		return nil, fmt.Errorf("repository %q is not in owner/name form", c.repo)
	}
	existing, err := c.openPullFor(ctx, owner+":"+head)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logger.Info("reusing open pull request",
			"branch", head,
			"number", existing.Number)
		return existing, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"title": title,
		"body":  body,
		"head":  head,
		"base":  base,
	})
	req, err := c.newRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/repos/%s/pulls", c.base, c.repo), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, apiError("creating pull request", resp)
	}
	var pr PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decoding pull request response: %w", err)
	}
	c.logger.Info("opened pull request",
		"branch", head,
		"number", pr.Number,
		"url", pr.HTMLURL)
	return &pr, nil
}

func (c *GitHubClient) openPullFor(ctx context.Context, head string) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/pulls?state=open&head=%s", c.base, c.repo, head)
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing pull requests: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("listing pull requests", resp)
	}
	var prs []PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&prs); err != nil {
		return nil, fmt.Errorf("decoding pull request list: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

func (c *GitHubClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func apiError(action string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
}
