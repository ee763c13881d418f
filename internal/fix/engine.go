// # internal/fix/engine.go

// Package fix routes static-analysis findings to rule handlers and
// reports per-finding outcomes. A finding that cannot be fixed is a
// normal result, never an error: errors are reserved for I/O trouble
// around the file itself.
package fix

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"sonarfix/internal/observability"
	"sonarfix/internal/parser"
	"sonarfix/internal/semantic"
)

// Finding is one reported issue to remediate.
type Finding struct {
	Rule    string // e.g. "java:S1125"
	Message string
	Path    string
	Line    int
}

type Status int

const (
	StatusUnfixed Status = iota
	StatusFixed
)

func (s Status) String() string {
	if s == StatusFixed {
		return "fixed"
	}
	return "unfixed"
}

// Method records which path produced the fix.
type Method string

const (
	MethodHandler Method = "handler"
	MethodRepair  Method = "repair"
)

// Outcome is the result for one finding. Status is Unfixed with a
// Reason when nothing safe could be done.
type Outcome struct {
	Finding Finding
	Status  Status
	Method  Method
	Reason  string
	NewText string
}

// Request is what a handler sees: the finding, the current full text,
// and the parsed model with its semantic summary.
type Request struct {
	Finding Finding
	Text    string
	Model   *parser.SourceFile
	Summary *semantic.Summary
}

// Lines splits the request text. The slice is the handler's to edit.
func (r *Request) Lines() []string {
	return strings.Split(r.Text, "\n")
}

// Handler rewrites the full file text for one rule. Returning the
// input unchanged means the handler found nothing to do at this
// finding; the engine then tries the repairer.
type Handler func(req *Request) (string, error)

// Repairer is the fallback collaborator consulted when no handler
// applies or the handler output fails validation.
type Repairer interface {
	Repair(ctx context.Context, req RepairRequest) (string, error)
}

type RepairRequest struct {
	Path    string
	Rule    string
	Message string
	Line    int
	Text    string
}

// Engine dispatches findings. Models are cached per absolute path in
// an LRU and invalidated explicitly on writes.
type Engine struct {
	parser   *parser.Parser
	logger   *slog.Logger
	handlers map[string]Handler
	repair   Repairer
	models   *lru.Cache[string, *parser.SourceFile]
	dryRun   bool
}

type EngineOption func(*Engine)

func WithRepairer(r Repairer) EngineOption {
	return func(e *Engine) { e.repair = r }
}

func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithDryRun keeps fixed text in the outcome without touching disk.
func WithDryRun(on bool) EngineOption {
	return func(e *Engine) { e.dryRun = on }
}

func WithModelCacheSize(n int) EngineOption {
	return func(e *Engine) {
		if cache, err := lru.New[string, *parser.SourceFile](n); err == nil {
			e.models = cache
		}
	}
}

func NewEngine(p *parser.Parser, opts ...EngineOption) *Engine {
	models, _ := lru.New[string, *parser.SourceFile](256)
	e := &Engine{
		parser:   p,
		logger:   slog.Default(),
		handlers: defaultHandlers(),
		models:   models,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register installs or replaces the handler for a rule id.
func (e *Engine) Register(rule string, h Handler) {
	e.handlers[rule] = h
}

// Rules lists the rule ids with a registered handler.
func (e *Engine) Rules() []string {
	rules := make([]string, 0, len(e.handlers))
	for rule := range e.handlers {
		rules = append(rules, rule)
	}
	return rules
}

// Fix attempts one finding. The error return covers only file access
// problems; every remediation failure comes back as an Unfixed
// outcome.
func (e *Engine) Fix(ctx context.Context, finding Finding) (Outcome, error) {
	ctx, span := observability.Tracer.Start(ctx, "engine.Fix")
	defer span.End()

	path, err := filepath.Abs(finding.Path)
	if err != nil {
		return Outcome{}, err
	}
	finding.Path = path

	content, err := os.ReadFile(path)
	if err != nil {
		return Outcome{}, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(content)

	model, err := e.model(path, content)
	if err != nil {
		return Outcome{}, err
	}

	req := &Request{
		Finding: finding,
		Text:    text,
		Model:   model,
		Summary: semantic.Summarize(model),
	}

	if handler, ok := e.handlers[finding.Rule]; ok {
		outcome := e.tryHandler(finding, handler, req)
		if outcome.Status == StatusFixed {
			return e.commit(finding, outcome)
		}
		return e.tryRepair(ctx, finding, text, outcome.Reason)
	}
	return e.tryRepair(ctx, finding, text, "no handler for rule")
}

func (e *Engine) tryHandler(finding Finding, handler Handler, req *Request) Outcome {
	newText, err := handler(req)
	switch {
	case err != nil:
		e.logger.Warn("handler failed",
			"rule", finding.Rule, "path", finding.Path, "error", err)
		return unfixed(finding, MethodHandler, "handler error: "+err.Error())
	case newText == req.Text:
		return unfixed(finding, MethodHandler, "handler made no change")
	}

	if failure := e.parser.Check(finding.Path, []byte(newText)); failure != nil {
		observability.FixValidationRejectsTotal.Inc()
		e.logger.Warn("handler output rejected",
			"rule", finding.Rule, "path", finding.Path, "failure", failure.Error())
		return unfixed(finding, MethodHandler, "validation rejected: "+failure.Reason)
	}

	return Outcome{Finding: finding, Status: StatusFixed, Method: MethodHandler, NewText: newText}
}

func (e *Engine) tryRepair(ctx context.Context, finding Finding, text, reason string) (Outcome, error) {
	if e.repair == nil {
		observability.FixAttemptsTotal.WithLabelValues(finding.Rule, "unfixed").Inc()
		return unfixed(finding, MethodHandler, reason), nil
	}

	repaired, err := e.repair.Repair(ctx, RepairRequest{
		Path:    finding.Path,
		Rule:    finding.Rule,
		Message: finding.Message,
		Line:    finding.Line,
		Text:    text,
	})
	switch {
	case err != nil:
		observability.RepairFallbackTotal.WithLabelValues("error").Inc()
		observability.FixAttemptsTotal.WithLabelValues(finding.Rule, "unfixed").Inc()
		return unfixed(finding, MethodRepair, reason+"; repair failed: "+err.Error()), nil
	case repaired == "" || repaired == text:
		observability.RepairFallbackTotal.WithLabelValues("no_change").Inc()
		observability.FixAttemptsTotal.WithLabelValues(finding.Rule, "unfixed").Inc()
		return unfixed(finding, MethodRepair, reason+"; repair made no change"), nil
	}

	if failure := e.parser.Check(finding.Path, []byte(repaired)); failure != nil {
		observability.FixValidationRejectsTotal.Inc()
		observability.RepairFallbackTotal.WithLabelValues("rejected").Inc()
		observability.FixAttemptsTotal.WithLabelValues(finding.Rule, "unfixed").Inc()
		return unfixed(finding, MethodRepair, reason+"; repair output rejected: "+failure.Reason), nil
	}

	observability.RepairFallbackTotal.WithLabelValues("fixed").Inc()
	return e.commit(finding, Outcome{
		Finding: finding, Status: StatusFixed, Method: MethodRepair, NewText: repaired,
	})
}

func (e *Engine) commit(finding Finding, outcome Outcome) (Outcome, error) {
	if !e.dryRun {
		if err := os.WriteFile(finding.Path, []byte(outcome.NewText), 0o644); err != nil {
			return Outcome{}, fmt.Errorf("write %s: %w", finding.Path, err)
		}
	}
	e.Invalidate(finding.Path)
	observability.FixAttemptsTotal.WithLabelValues(finding.Rule, "fixed").Inc()
	e.logger.Info("finding fixed",
		"rule", finding.Rule, "path", finding.Path, "line", finding.Line,
		"method", string(outcome.Method))
	return outcome, nil
}

// FixAll runs every finding in order. One broken file or stubborn
// finding never stops the batch; its outcome records the failure.
func (e *Engine) FixAll(ctx context.Context, findings []Finding) []Outcome {
	outcomes := make([]Outcome, 0, len(findings))
	for _, finding := range findings {
		if ctx.Err() != nil {
			outcomes = append(outcomes, unfixed(finding, MethodHandler, "canceled"))
			continue
		}
		outcome, err := e.Fix(ctx, finding)
		if err != nil {
			outcome = unfixed(finding, MethodHandler, err.Error())
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// model returns the cached file model, parsing on a miss.
func (e *Engine) model(path string, content []byte) (*parser.SourceFile, error) {
	if cached, ok := e.models.Get(path); ok {
		return cached, nil
	}
	file, err := e.parser.ParseFile(path, content)
	if err != nil {
		return nil, err
	}
	e.models.Add(path, file)
	return file, nil
}

// Invalidate drops the cached model for path.
func (e *Engine) Invalidate(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	e.models.Remove(path)
}

// Reset drops every cached model.
func (e *Engine) Reset() {
	e.models.Purge()
}

func unfixed(finding Finding, method Method, reason string) Outcome {
	return Outcome{Finding: finding, Status: StatusUnfixed, Method: method, Reason: reason}
}
