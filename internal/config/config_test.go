package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
project_root = "./src"
project_key = "acme:widgets"

[exclude]
dirs = ["generated"]

[watch]
debounce = "1s"

[sonar]
url = "https://sonar.example.com"
organization = "acme"
rate_limit = 5.0

[fix]
max_findings = 10
dry_run = true

[repair]
enabled = true
model = "gemini-2.0-flash"

[publish]
repository = "acme/widgets"
branch = "bot/fixes"
base = "develop"

[history]
path = "/tmp/history.db"

[serve]
metrics_addr = ":9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ProjectRoot != "./src" {
		t.Errorf("ProjectRoot = %s", cfg.ProjectRoot)
	}
	if cfg.ProjectKey != "acme:widgets" {
		t.Errorf("ProjectKey = %s", cfg.ProjectKey)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("debounce = %v, want 1s", cfg.Watch.Debounce)
	}
	if cfg.Sonar.URL != "https://sonar.example.com" || cfg.Sonar.Organization != "acme" {
		t.Errorf("sonar = %+v", cfg.Sonar)
	}
	if cfg.Fix.MaxFindings != 10 || !cfg.Fix.DryRun {
		t.Errorf("fix = %+v", cfg.Fix)
	}
	if cfg.Publish.Branch != "bot/fixes" || cfg.Publish.Base != "develop" {
		t.Errorf("publish = %+v", cfg.Publish)
	}
	if len(cfg.Exclude.Dirs) != 1 || cfg.Exclude.Dirs[0] != "generated" {
		t.Errorf("exclude dirs = %v", cfg.Exclude.Dirs)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `project_key = "p"`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ProjectRoot != "." {
		t.Errorf("ProjectRoot = %s, want .", cfg.ProjectRoot)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v, want 500ms", cfg.Watch.Debounce)
	}
	if cfg.Sonar.URL != "https://sonarcloud.io" {
		t.Errorf("sonar url = %s", cfg.Sonar.URL)
	}
	if cfg.Fix.MaxFindings != 50 {
		t.Errorf("max findings = %d, want 50", cfg.Fix.MaxFindings)
	}
	if cfg.Publish.Branch != "bot/sonar-fixes" || cfg.Publish.Base != "main" {
		t.Errorf("publish = %+v", cfg.Publish)
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("expected default exclude dirs")
	}
}

func TestLoadNoPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ProjectRoot != "." {
		t.Errorf("ProjectRoot = %s, want .", cfg.ProjectRoot)
	}
}

func TestLoadError(t *testing.T) {
	if _, err := Load("nonexistent.toml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
	if _, err := Load(writeConfig(t, "bad = toml = format")); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestSecretsFromEnv(t *testing.T) {
	t.Setenv("SONAR_TOKEN", "st")
	t.Setenv("GITHUB_TOKEN", "gt")
	t.Setenv("GEMINI_API_KEY", "gk")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Secrets.SonarToken != "st" || cfg.Secrets.GitHubToken != "gt" || cfg.Secrets.GeminiAPIKey != "gk" {
		t.Errorf("secrets = %+v", cfg.Secrets)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SONARFIX_MAX", "7")
	if got := EnvInt("SONARFIX_MAX", 3); got != 7 {
		t.Errorf("EnvInt = %d, want 7", got)
	}
	if got := EnvInt("SONARFIX_UNSET", 3); got != 3 {
		t.Errorf("EnvInt fallback = %d, want 3", got)
	}
	t.Setenv("SONARFIX_BAD", "x")
	if got := EnvInt("SONARFIX_BAD", 3); got != 3 {
		t.Errorf("EnvInt malformed = %d, want 3", got)
	}
}
