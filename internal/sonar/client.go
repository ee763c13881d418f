// # internal/sonar/client.go

// Package sonar fetches open findings from a SonarQube or SonarCloud
// server.
package sonar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sonarfix/internal/fix"
	"sonarfix/internal/observability"
	"sonarfix/internal/util"
)

const defaultPageSize = 500

// Issue is one open finding reported by the server.
type Issue struct {
	Key       string `json:"key"`
	Rule      string `json:"rule"`
	Severity  string `json:"severity"`
	Component string `json:"component"` // "<projectKey>:<path/in/repo>"
	Line      int    `json:"line"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

// Path strips the project key prefix from the component.
func (i Issue) Path() string {
	if idx := strings.IndexByte(i.Component, ':'); idx >= 0 {
		return i.Component[idx+1:]
	}
	return i.Component
}

type searchResponse struct {
	Issues []Issue `json:"issues"`
	Paging struct {
		PageIndex int `json:"pageIndex"`
		PageSize  int `json:"pageSize"`
		Total     int `json:"total"`
	} `json:"paging"`
}

type Client struct {
	baseURL      string
	token        string
	organization string
	pageSize     int
	httpClient   *http.Client
	limiter      *util.Limiter
	logger       *slog.Logger
}

type ClientOption func(*Client)

func WithOrganization(org string) ClientOption {
	return func(c *Client) { c.organization = org }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithPageSize(ps int) ClientOption {
	return func(c *Client) {
		if ps > 0 {
			c.pageSize = ps
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = util.NewLimiter(perSecond, burst) }
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		pageSize:   defaultPageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    util.NewLimiter(10, 10),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchIssues pages through /api/issues/search for every unresolved
// finding of the project. Paging stops on an empty or short page.
func (c *Client) FetchIssues(ctx context.Context, projectKey string) ([]Issue, error) {
	var issues []Issue
	for page := 1; ; page++ {
		params := url.Values{
			"componentKeys": {projectKey},
			"resolved":      {"false"},
			"ps":            {strconv.Itoa(c.pageSize)},
			"p":             {strconv.Itoa(page)},
		}
		if c.organization != "" {
			params.Set("organization", c.organization)
		}

		var resp searchResponse
		if err := c.get(ctx, "/api/issues/search", params, &resp); err != nil {
			return nil, err
		}
		if len(resp.Issues) == 0 {
			break
		}
		issues = append(issues, resp.Issues...)
		c.logger.Debug("issues page fetched",
			"project", projectKey, "page", page, "count", len(resp.Issues))
		if len(resp.Issues) < c.pageSize {
			break
		}
	}
	return issues, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx, 1); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.SetBasicAuth(c.token, "")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.SonarRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("sonar request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	observability.SonarRequestsTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sonar request %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// safeRules are the rule ids considered safe to remediate without a
// human in the loop.
var safeRules = map[string]bool{
	fix.RuleBooleanLiteral:     true,
	fix.RuleCollectionSize:     true,
	fix.RuleSystemOut:          true,
	fix.RuleEmptyCatch:         true,
	fix.RuleCommentedCode:      true,
	fix.RuleUtilityConstructor: true,
	fix.RuleUnusedLocal:        true,
	fix.RuleUnusedField:        true,
	fix.RuleComplexity:         true,
}

// AutoFixables filters issues down to the safe rule set, keeping
// server order, capped at max (0 means no cap).
func AutoFixables(issues []Issue, max int) []Issue {
	var out []Issue
	for _, issue := range issues {
		if !safeRules[issue.Rule] {
			continue
		}
		out = append(out, issue)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// Findings maps issues onto engine findings, resolving component
// paths against the project root.
func Findings(root string, issues []Issue) []fix.Finding {
	findings := make([]fix.Finding, 0, len(issues))
	for _, issue := range issues {
		findings = append(findings, fix.Finding{
			Rule:    issue.Rule,
			Message: issue.Message,
			Path:    filepath.Join(root, filepath.FromSlash(issue.Path())),
			Line:    issue.Line,
		})
	}
	return findings
}
