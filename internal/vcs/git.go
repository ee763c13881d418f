// Package vcs publishes applied fixes as a branch and pull request.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Git runs git against a working tree.
type Git struct {
	root   string
	logger *slog.Logger
}

func NewGit(root string, logger *slog.Logger) *Git {
	if logger == nil {
		logger = slog.Default()
	}
	return &Git{root: root, logger: logger}
}

// Metadata returns the short head hash and commit time, or zero values
// when the root is not a repository.
func (g *Git) Metadata() (string, time.Time) {
	hash, err := g.output("rev-parse", "--short=12", "HEAD")
	if err != nil {
		return "", time.Time{}
	}
	raw, err := g.output("show", "-s", "--format=%cI", "HEAD")
	if err != nil {
		return hash, time.Time{}
	}
	commitTime, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return hash, time.Time{}
	}
	return hash, commitTime.UTC()
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.output("rev-parse", "--abbrev-ref", "HEAD")
}

// CommitOnBranch switches to branch (creating it when absent), stages
// everything and commits. Returns false with no error when the tree
// was already clean.
func (g *Git) CommitOnBranch(ctx context.Context, branch, message string) (bool, error) {
	if err := g.run(ctx, "checkout", "-B", branch); err != nil {
		return false, fmt.Errorf("switching to branch %s: %w", branch, err)
	}
	if err := g.run(ctx, "add", "-A"); err != nil {
		return false, fmt.Errorf("staging changes: %w", err)
	}
	status, err := g.output("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking status: %w", err)
	}
	if status == "" {
		g.logger.Info("nothing to commit", "branch", branch)
		return false, nil
	}
	if err := g.run(ctx, "commit", "-m", message); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// Push publishes the branch, setting the upstream on first push.
func (g *Git) Push(ctx context.Context, branch string) error {
	if err := g.run(ctx, "push", "--set-upstream", "origin", branch); err != nil {
		return fmt.Errorf("pushing %s: %w", branch, err)
	}
	return nil
}

func (g *Git) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.root}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("git %s: %s", args[0], msg)
		}
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return nil
}

func (g *Git) output(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", g.root}, args...)...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
