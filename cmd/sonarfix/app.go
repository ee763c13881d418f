package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sonarfix/internal/config"
	"sonarfix/internal/fix"
	"sonarfix/internal/graph"
	"sonarfix/internal/history"
	"sonarfix/internal/observability"
	"sonarfix/internal/output"
	"sonarfix/internal/parser"
	"sonarfix/internal/repair"
	"sonarfix/internal/sonar"
	"sonarfix/internal/vcs"
	"sonarfix/internal/watcher"
)

type App struct {
	Config  *config.Config
	Parser  *parser.Parser
	Tracker *graph.Tracker
	Engine  *fix.Engine
	Sonar   *sonar.Client
	History *history.Store

	git        *vcs.Git
	publisher  *vcs.Publisher
	server     *observability.Server
	watcher    *watcher.Watcher
	teaProgram *tea.Program
	logger     *slog.Logger

	stopTracing func(context.Context) error
}

// RunResult summarizes one fix pass.
type RunResult struct {
	RunID    string
	Outcomes []fix.Outcome
	Duration time.Duration
	PR       *vcs.PullRequest
}

func (r RunResult) Fixed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == fix.StatusFixed {
			n++
		}
	}
	return n
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	p := parser.NewParser(parser.NewGrammarLoader())
	p.RegisterExtractor("java", parser.NewJavaExtractor())

	tracker := graph.NewTracker(p,
		graph.WithLogger(logger),
		graph.WithExcludes(cfg.Exclude.Dirs),
	)

	engineOpts := []fix.EngineOption{
		fix.WithEngineLogger(logger),
		fix.WithDryRun(cfg.Fix.DryRun),
	}
	if cfg.Repair.Enabled {
		repairer, err := repair.NewGeminiRepairer(ctx,
			repair.WithModel(cfg.Repair.Model),
			repair.WithRepairLogger(logger),
		)
		if err != nil {
			logger.Warn("generative repair unavailable, continuing without it", "error", err)
		} else {
			engineOpts = append(engineOpts, fix.WithRepairer(repairer))
		}
	}
	engine := fix.NewEngine(p, engineOpts...)

	sonarClient := sonar.NewClient(cfg.Sonar.URL, cfg.Secrets.SonarToken,
		sonar.WithOrganization(cfg.Sonar.Organization),
		sonar.WithRateLimit(cfg.Sonar.RateLimit, max(int(cfg.Sonar.RateLimit), 1)),
		sonar.WithClientLogger(logger),
	)

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	app := &App{
		Config:  cfg,
		Parser:  p,
		Tracker: tracker,
		Engine:  engine,
		Sonar:   sonarClient,
		History: store,
		git:     vcs.NewGit(cfg.ProjectRoot, logger),
		logger:  logger,
	}

	if cfg.Publish.Repository != "" && cfg.Secrets.GitHubToken != "" {
		gh := vcs.NewGitHubClient(cfg.Secrets.GitHubToken, cfg.Publish.Repository,
			vcs.WithGitHubLogger(logger))
		app.publisher = vcs.NewPublisher(app.git, gh,
			vcs.WithBranch(cfg.Publish.Branch),
			vcs.WithBaseBranch(cfg.Publish.Base),
			vcs.WithPublisherLogger(logger),
		)
	}

	if cfg.Serve.OTLPEndpoint != "" {
		stop, err := observability.SetupTracing(ctx, cfg.Serve.OTLPEndpoint, VERSION)
		if err != nil {
			logger.Warn("tracing unavailable", "error", err)
		} else {
			app.stopTracing = stop
		}
	}

	return app, nil
}

func (a *App) BuildProject(ctx context.Context) error {
	if err := a.Tracker.BuildProject(ctx, a.Config.ProjectRoot); err != nil {
		return err
	}
	if err := a.GenerateOutputs(); err != nil {
		a.logger.Warn("failed to generate outputs", "error", err)
	}
	return nil
}

// GenerateOutputs writes the configured DOT and TSV renderings of the
// current graph.
func (a *App) GenerateOutputs() error {
	if a.Config.Output.DOT != "" {
		dot, err := output.NewDOTGenerator(a.Tracker).Generate(a.Tracker.DetectCycles())
		if err != nil {
			return err
		}
		if err := os.WriteFile(a.Config.Output.DOT, []byte(dot), 0644); err != nil {
			return err
		}
	}
	if a.Config.Output.TSV != "" {
		gen := output.NewTSVGenerator(a.Tracker)
		edges, err := gen.Generate()
		if err != nil {
			return err
		}
		unused, err := gen.GenerateUnused()
		if err != nil {
			return err
		}
		tsv := strings.TrimRight(edges, "\n") + "\n\n" + strings.TrimRight(unused, "\n") + "\n"
		if err := os.WriteFile(a.Config.Output.TSV, []byte(tsv), 0644); err != nil {
			return err
		}
	}
	return nil
}

// RunOnce fetches findings, applies fixes, records the run and
// optionally publishes the result as a pull request. findingsFile
// bypasses the Sonar API when non-empty.
func (a *App) RunOnce(ctx context.Context, publish bool, findingsFile string) (RunResult, error) {
	started := time.Now()

	findings, err := a.collectFindings(ctx, findingsFile)
	if err != nil {
		return RunResult{}, err
	}
	outcomes := a.Engine.FixAll(ctx, findings)

	for _, o := range outcomes {
		if o.Status != fix.StatusFixed || a.Config.Fix.DryRun {
			continue
		}
		if err := a.Tracker.UpdateFile(o.Finding.Path); err != nil {
			a.logger.Warn("failed to refresh fixed file", "path", o.Finding.Path, "error", err)
		}
	}

	hash, _ := a.git.Metadata()
	runID, err := a.History.RecordRun(a.Config.ProjectKey, hash, started, time.Now(), outcomes)
	if err != nil {
		a.logger.Warn("failed to record run", "error", err)
	}

	result := RunResult{
		RunID:    runID,
		Outcomes: outcomes,
		Duration: time.Since(started),
	}

	if publish && !a.Config.Fix.DryRun {
		if a.publisher == nil {
			a.logger.Warn("publishing requested but no repository or token configured")
		} else {
			pr, err := a.publisher.Publish(ctx, outcomes)
			if err != nil {
				return result, fmt.Errorf("publishing fixes: %w", err)
			}
			result.PR = pr
		}
	}

	return result, nil
}

func (a *App) collectFindings(ctx context.Context, findingsFile string) ([]fix.Finding, error) {
	if findingsFile != "" {
		findings, err := loadFindingsFile(a.Config.ProjectRoot, findingsFile)
		if err != nil {
			return nil, fmt.Errorf("loading findings file: %w", err)
		}
		a.logger.Info("findings loaded from file", "path", findingsFile, "count", len(findings))
		return findings, nil
	}

	issues, err := a.Sonar.FetchIssues(ctx, a.Config.ProjectKey)
	if err != nil {
		return nil, fmt.Errorf("fetching findings: %w", err)
	}
	limit := config.EnvInt("SONARFIX_MAX_FINDINGS", a.Config.Fix.MaxFindings)
	fixables := sonar.AutoFixables(issues, limit)
	a.logger.Info("findings fetched",
		"total", len(issues),
		"auto_fixable", len(fixables))
	return sonar.Findings(a.Config.ProjectRoot, fixables), nil
}

// loadFindingsFile reads a JSON array of findings. Relative paths are
// resolved against the project root.
func loadFindingsFile(root, path string) ([]fix.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Rule    string `json:"rule"`
		Message string `json:"message"`
		Path    string `json:"path"`
		Line    int    `json:"line"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	findings := make([]fix.Finding, 0, len(raw))
	for _, r := range raw {
		p := r.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		findings = append(findings, fix.Finding{
			Rule:    r.Rule,
			Message: r.Message,
			Path:    p,
			Line:    r.Line,
		})
	}
	return findings, nil
}

func (a *App) PrintSummary(result RunResult) {
	fixed := result.Fixed()
	unfixed := len(result.Outcomes) - fixed

	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Run %s: %d finding(s) in %v\n", result.RunID, len(result.Outcomes), result.Duration.Round(time.Millisecond))
	fmt.Printf("  fixed:   %d\n", fixed)
	fmt.Printf("  unfixed: %d\n", unfixed)
	for _, o := range result.Outcomes {
		if o.Status == fix.StatusFixed {
			fmt.Printf("  ✅ %s %s:%d (%s)\n", o.Finding.Rule, o.Finding.Path, o.Finding.Line, o.Method)
		} else {
			fmt.Printf("  ⚠️  %s %s:%d: %s\n", o.Finding.Rule, o.Finding.Path, o.Finding.Line, o.Reason)
		}
	}
	if result.PR != nil {
		fmt.Printf("  PR: %s\n", result.PR.HTMLURL)
	}
	fmt.Println(strings.Repeat("-", 40))
}

// PrintTrends reports fix-rate movement over the last n recorded runs.
func (a *App) PrintTrends(n int) error {
	runs, err := a.History.RecentRuns(a.Config.ProjectKey, n)
	if err != nil {
		return fmt.Errorf("loading run history: %w", err)
	}
	// RecentRuns is newest first; the report wants chronological order.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	report, err := history.BuildTrendReport(runs, 24*time.Hour)
	if err != nil {
		return err
	}

	fmt.Printf("Trend report: %d run(s), %s .. %s\n",
		report.RunCount,
		report.Since.Format(time.RFC3339),
		report.Until.Format(time.RFC3339))
	for _, p := range report.Points {
		fmt.Printf("  %s  %s  total=%d fixed=%d unfixed=%d rate=%.1f%% delta=%+d avg=%.1f\n",
			p.Timestamp.Format("2006-01-02 15:04"),
			p.RunID[:8],
			p.Total, p.Fixed, p.Unfixed, p.FixRatePct, p.DeltaFixed, p.AvgFixed)
	}
	return nil
}

func (a *App) StartServing(ctx context.Context) error {
	if a.Config.Serve.MetricsAddr == "" {
		return nil
	}
	a.server = observability.NewServer(a.Config.Serve.MetricsAddr, func(ctx context.Context) observability.HealthStatus {
		return observability.HealthStatus{
			Status:       "up",
			TrackedFiles: a.Tracker.FileCount(),
			Degraded:     a.Tracker.DegradedCount(),
		}
	})
	return a.server.Start(ctx)
}

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.logger,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	a.watcher = w
	return w.Watch([]string{a.Config.ProjectRoot})
}

// HandleChanges refreshes the tracker and fix cache after a debounced
// batch of source changes.
func (a *App) HandleChanges(changes []watcher.Change) {
	start := time.Now()
	for _, c := range changes {
		a.Engine.Invalidate(c.Path)
		if c.Removed {
			a.Tracker.RemoveFile(c.Path)
			continue
		}
		if err := a.Tracker.UpdateFile(c.Path); err != nil {
			a.logger.Warn("failed to re-process file", "path", c.Path, "error", err)
		}
	}

	if err := a.GenerateOutputs(); err != nil {
		a.logger.Warn("failed to generate outputs", "error", err)
	}

	cycles := a.Tracker.DetectCycles()
	a.logger.Info("changes applied",
		"count", len(changes),
		"files", a.Tracker.FileCount(),
		"degraded", a.Tracker.DegradedCount(),
		"cycles", len(cycles),
		"duration", time.Since(start))

	if a.teaProgram != nil {
		a.teaProgram.Send(updateMsg{
			fileCount:     a.Tracker.FileCount(),
			degradedCount: a.Tracker.DegradedCount(),
			cycles:        cycles,
			changed:       changedPaths(changes),
		})
	}
}

func changedPaths(changes []watcher.Change) []string {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	return paths
}

func (a *App) RunUI() error {
	m := initialModel()
	p := tea.NewProgram(m, tea.WithAltScreen())
	a.teaProgram = p

	go func() {
		a.teaProgram.Send(updateMsg{
			fileCount:     a.Tracker.FileCount(),
			degradedCount: a.Tracker.DegradedCount(),
			cycles:        a.Tracker.DetectCycles(),
		})
	}()

	_, err := p.Run()
	return err
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Stop(ctx)
	}
	if a.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.stopTracing(ctx)
	}
	if a.History != nil {
		_ = a.History.Close()
	}
}
