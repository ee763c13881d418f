package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sonarfix/internal/fix"
)

const defaultBranch = "bot/sonar-fixes"

// Publisher turns a batch of fix outcomes into a branch, commit, push
// and pull request.
type Publisher struct {
	git    *Git
	github *GitHubClient
	branch string
	base   string
	logger *slog.Logger
}

type PublisherOption func(*Publisher)

// WithBranch sets the working branch for fixes.
func WithBranch(name string) PublisherOption {
	return func(p *Publisher) {
		if name != "" {
			p.branch = name
		}
	}
}

// WithBaseBranch sets the pull request target branch.
func WithBaseBranch(name string) PublisherOption {
	return func(p *Publisher) {
		if name != "" {
			p.base = name
		}
	}
}

func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPublisher(git *Git, github *GitHubClient, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		git:    git,
		github: github,
		branch: defaultBranch,
		base:   "main",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish commits the already-written fixes and opens (or reuses) a
// pull request describing them. A batch with no applied fixes is a
// no-op.
func (p *Publisher) Publish(ctx context.Context, outcomes []fix.Outcome) (*PullRequest, error) {
	fixed := 0
	for _, o := range outcomes {
		if o.Status == fix.StatusFixed {
			fixed++
		}
	}
	if fixed == 0 {
		p.logger.Info("no applied fixes to publish")
		return nil, nil
	}

	committed, err := p.git.CommitOnBranch(ctx, p.branch, commitMessage(fixed))
	if err != nil {
		return nil, err
	}
	if !committed {
		return nil, nil
	}
	if err := p.git.Push(ctx, p.branch); err != nil {
		return nil, err
	}
	title := fmt.Sprintf("fix(sonar): resolve %d finding(s)", fixed)
	return p.github.EnsurePullRequest(ctx, p.branch, p.base, title, prBody(outcomes))
}

func commitMessage(fixed int) string {
	return fmt.Sprintf("fix(sonar): apply %d automated fix(es)", fixed)
}

func prBody(outcomes []fix.Outcome) string {
	var sb strings.Builder
	sb.WriteString("Automated fixes for SonarQube findings.\n\n")
	for _, o := range outcomes {
		if o.Status != fix.StatusFixed {
			continue
		}
		fmt.Fprintf(&sb, "- `%s` %s:%d (%s)\n",
			o.Finding.Rule, o.Finding.Path, o.Finding.Line, o.Method)
	}
	sb.WriteString("\nUnfixed findings were left untouched for manual review.\n")
	return sb.String()
}
