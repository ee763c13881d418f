// Package config loads the TOML configuration and the secret-bearing
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	ProjectRoot string  `toml:"project_root"`
	ProjectKey  string  `toml:"project_key"`
	Exclude     Exclude `toml:"exclude"`
	Watch       Watch   `toml:"watch"`
	Sonar       Sonar   `toml:"sonar"`
	Fix         Fix     `toml:"fix"`
	Repair      Repair  `toml:"repair"`
	Publish     Publish `toml:"publish"`
	History     History `toml:"history"`
	Serve       Serve   `toml:"serve"`
	Output      Output  `toml:"output"`

	Secrets Secrets `toml:"-"`
}

type Exclude struct {
	Dirs []string `toml:"dirs"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Sonar struct {
	URL          string  `toml:"url"`
	Organization string  `toml:"organization"`
	RateLimit    float64 `toml:"rate_limit"`
}

type Fix struct {
	MaxFindings int  `toml:"max_findings"`
	DryRun      bool `toml:"dry_run"`
	Workers     int  `toml:"workers"`
}

type Repair struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
}

type Publish struct {
	Repository string `toml:"repository"` // owner/name
	Branch     string `toml:"branch"`
	Base       string `toml:"base"`
}

type History struct {
	Path string `toml:"path"`
}

type Output struct {
	DOT string `toml:"dot"`
	TSV string `toml:"tsv"`
}

type Serve struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Secrets come from the environment, never from the TOML file. A .env
// file alongside the process is loaded first when present.
type Secrets struct {
	SonarToken   string
	GitHubToken  string
	GeminiAPIKey string
}

func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	cfg.Secrets = loadSecrets()
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Sonar.URL == "" {
		cfg.Sonar.URL = "https://sonarcloud.io"
	}
	if cfg.Sonar.RateLimit == 0 {
		cfg.Sonar.RateLimit = 10
	}
	if cfg.Fix.MaxFindings == 0 {
		cfg.Fix.MaxFindings = 50
	}
	if cfg.Publish.Branch == "" {
		cfg.Publish.Branch = "bot/sonar-fixes"
	}
	if cfg.Publish.Base == "" {
		cfg.Publish.Base = "main"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = ".sonarfix/history.db"
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{"build", "target", ".git"}
	}
}

func loadSecrets() Secrets {
	_ = godotenv.Load()
	return Secrets{
		SonarToken:   os.Getenv("SONAR_TOKEN"),
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		GeminiAPIKey: getenvAny("GEMINI_API_KEY", "GOOGLE_API_KEY"),
	}
}

func getenvAny(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// EnvInt reads an integer override from the environment, falling back
// to the given value when unset or malformed.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
