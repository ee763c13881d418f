// Package repair provides the generative fallback used when no
// deterministic handler can produce a fix for a finding.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"sonarfix/internal/fix"
	"sonarfix/internal/util"
)

var (
	// ErrEmptyResponse is returned when the model replies without any
	// usable content.
	ErrEmptyResponse = errors.New("repair: empty model response")

	// ErrNoCodeBlock is returned when the reply carries no fenced Java
	// code block to extract.
	ErrNoCodeBlock = errors.New("repair: no java code block in response")
)

const defaultModel = "gemini-2.0-flash"

// GeminiRepairer asks a Gemini model for a rewritten source file when
// the deterministic handlers fall short. The engine re-validates
// whatever comes back, so the repairer only has to produce text.
type GeminiRepairer struct {
	cli     *genai.Client
	model   string
	logger  *slog.Logger
	limiter *util.Limiter
	retries int
	backoff time.Duration
}

type GeminiOption func(*GeminiRepairer)

// WithModel overrides the default Gemini model name.
func WithModel(name string) GeminiOption {
	return func(g *GeminiRepairer) {
		if name != "" {
			g.model = name
		}
	}
}

// WithRepairLogger sets the logger used for request reporting.
func WithRepairLogger(l *slog.Logger) GeminiOption {
	return func(g *GeminiRepairer) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRequestRate bounds outgoing model calls per second.
func WithRequestRate(rps float64, burst int) GeminiOption {
	return func(g *GeminiRepairer) {
		if rps > 0 && burst > 0 {
			g.limiter = util.NewLimiter(rps, burst)
		}
	}
}

// WithRetries sets the number of attempts per request.
func WithRetries(n int) GeminiOption {
	return func(g *GeminiRepairer) {
		if n > 0 {
			g.retries = n
		}
	}
}

// NewGeminiRepairer builds a repairer backed by the Gemini API. The
// API key is read from the environment by the client itself
// (GEMINI_API_KEY / GOOGLE_API_KEY).
func NewGeminiRepairer(ctx context.Context, opts ...GeminiOption) (*GeminiRepairer, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g := &GeminiRepairer{
		cli:     cli,
		model:   defaultModel,
		logger:  slog.Default(),
		limiter: util.NewLimiter(1, 2),
		retries: 3,
		backoff: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Repair sends the finding and the full file to the model and returns
// the rewritten file extracted from the reply.
func (g *GeminiRepairer) Repair(ctx context.Context, req fix.RepairRequest) (string, error) {
	prompt := buildPrompt(req)
	g.logger.Debug("repair request",
		"path", req.Path,
		"rule", req.Rule,
		"bytes", len(prompt))

	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		if err := g.limiter.Wait(ctx, 1); err != nil {
			return "", err
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.2)},
		)
		if err != nil {
			lastErr = err
			g.logger.Warn("repair attempt failed",
				"path", req.Path,
				"attempt", attempt+1,
				"error", err)
			continue
		}
		text := responseText(resp)
		if text == "" {
			lastErr = ErrEmptyResponse
			continue
		}
		code, err := ExtractJavaBlock(text)
		if err != nil {
			lastErr = err
			continue
		}
		return code, nil
	}
	return "", lastErr
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func buildPrompt(req fix.RepairRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an expert Java code reviewer and refactoring specialist.\n")
	sb.WriteString("Fix the following SonarQube issue in the provided file.\n\n")
	sb.WriteString("ISSUE DETAILS:\n")
	fmt.Fprintf(&sb, "- Rule: %s\n", req.Rule)
	fmt.Fprintf(&sb, "- Message: %s\n", req.Message)
	fmt.Fprintf(&sb, "- File: %s\n", req.Path)
	if req.Line > 0 {
		fmt.Fprintf(&sb, "- Line: %d\n", req.Line)
	}
	sb.WriteString("\nORIGINAL CODE:\n```java\n")
	sb.WriteString(req.Text)
	if !strings.HasSuffix(req.Text, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")
	sb.WriteString("Rewrite the entire file so the issue is resolved while:\n")
	sb.WriteString("1. Maintaining all existing functionality\n")
	sb.WriteString("2. Following Java best practices\n")
	sb.WriteString("3. Keeping the code readable and maintainable\n\n")
	sb.WriteString("Reply with the complete fixed file in a single ```java code block and nothing else.\n")
	return sb.String()
}

// ExtractJavaBlock returns the contents of the first fenced Java code
// block in a model reply. A bare ``` fence is accepted when no
// language-tagged block exists.
func ExtractJavaBlock(response string) (string, error) {
	var (
		block    []string
		fallback []string
		inJava   bool
		inPlain  bool
	)
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "```java" && !inJava && !inPlain:
			inJava = true
			block = block[:0]
		case trimmed == "```" && inJava:
			return strings.Join(block, "\n"), nil
		case inJava:
			block = append(block, line)
		case trimmed == "```" && !inPlain && fallback == nil:
			inPlain = true
		case trimmed == "```" && inPlain:
			inPlain = false
		case inPlain:
			fallback = append(fallback, line)
		}
	}
	if fallback != nil {
		return strings.Join(fallback, "\n"), nil
	}
	return "", ErrNoCodeBlock
}

// NoopRepairer declines every request. Used for offline runs where
// only deterministic handlers should apply.
type NoopRepairer struct{}

func (NoopRepairer) Repair(context.Context, fix.RepairRequest) (string, error) {
	return "", errors.New("repair: generative repair disabled")
}
