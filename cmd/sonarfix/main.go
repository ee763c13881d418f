package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"sonarfix/internal/config"
	"sonarfix/internal/graph"
)

var (
	configPath = flag.String("config", "./sonarfix.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run a single fix pass and exit")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode")
	impact     = flag.String("impact", "", "Report change impact for a file path or fully qualified type")
	doFix      = flag.Bool("fix", false, "Fetch findings and apply fixes")
	findings   = flag.String("findings", "", "Path to a findings JSON file, bypassing the Sonar API")
	dryRun     = flag.Bool("dry-run", false, "Compute fixes without writing files")
	trends     = flag.Int("trends", 0, "Print a trend report over the last N recorded runs and exit")
	pr         = flag.Bool("pr", false, "Publish applied fixes as a pull request")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("sonarfix v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *ui {
		// In UI mode, avoid stdout logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			output = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./sonarfix.toml" {
			cfg, err = config.Load("")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	if flag.NArg() > 0 {
		cfg.ProjectRoot = flag.Arg(0)
	}
	if *dryRun {
		cfg.Fix.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *trends > 0 {
		if err := app.PrintTrends(*trends); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := app.BuildProject(ctx); err != nil {
		slog.Error("project build failed", "error", err)
		os.Exit(1)
	}

	if *impact != "" {
		report, err := app.Tracker.Impact(*impact)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Print(formatImpactReport(report))
		os.Exit(0)
	}

	if *doFix || *once {
		result, err := app.RunOnce(ctx, *pr, *findings)
		if err != nil {
			slog.Error("fix run failed", "error", err)
			os.Exit(1)
		}
		app.PrintSummary(result)
		if *once {
			os.Exit(0)
		}
	}

	if err := app.StartServing(ctx); err != nil {
		slog.Error("failed to start observability server", "error", err)
		os.Exit(1)
	}
	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if *ui {
		if err := app.RunUI(); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
		return
	}

	<-ctx.Done()
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "sonarfix", "sonarfix.log")
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "sonarfix", "sonarfix.log")
	}
	return "sonarfix.log"
}

func formatImpactReport(report graph.ImpactReport) string {
	var b strings.Builder

	b.WriteString("Impact Analysis\n")
	b.WriteString("==============\n")
	b.WriteString(fmt.Sprintf("Target file: %s\n\n", report.TargetPath))

	b.WriteString(fmt.Sprintf("Direct dependents (%d)\n", len(report.Direct)))
	for _, path := range report.Direct {
		b.WriteString(fmt.Sprintf("- %s\n", path))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Transitive impact (%d)\n", len(report.Transitive)))
	for _, path := range report.Transitive {
		b.WriteString(fmt.Sprintf("- %s\n", path))
	}

	return b.String()
}
