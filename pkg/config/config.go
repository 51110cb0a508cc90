// Package config loads the orchestrator's process configuration from
// environment variables (optionally backed by a .env file), following
// the teacher's getEnv/LoadConfigFromEnv idiom rather than its YAML
// agent/chain/MCP registry system, which has no equivalent in this
// domain.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Checkpointer backend selectors for CHECKPOINTER_TYPE.
const (
	CheckpointerMemory   = "memory"
	CheckpointerSQLite   = "sqlite"
	CheckpointerPostgres = "postgres"
)

// Config is the orchestrator's full runtime configuration, loaded once
// at process start (spec.md §6's "Configuration" table).
type Config struct {
	HTTPPort string

	CheckpointerType string
	SQLiteDBPath     string
	PostgresURL      string

	MaxTestRetries     int
	MaxGenFixRetries   int
	MaxReviewRetries   int
	MaxResearchRetries int

	MaxConcurrentPipelines int
	PipelineTimeout        time.Duration

	GitHubOwner string
	GitHubRepo  string
	GitHubToken string
}

// Load reads configuration from the environment, first loading envPath
// as a .env file if present (teacher's cmd/tarsy/main.go does the same
// with godotenv.Load before reading any variable). A missing .env file
// is not an error — the orchestrator runs fine from an already-populated
// environment (container, CI, systemd unit).
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	maxTestRetries, err := getEnvInt("MAX_TEST_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	maxGenFixRetries, err := getEnvInt("MAX_GEN_FIX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	maxReviewRetries, err := getEnvInt("MAX_REVIEW_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	maxResearchRetries, err := getEnvInt("MAX_RESEARCH_RETRIES", 1)
	if err != nil {
		return nil, err
	}
	maxConcurrent, err := getEnvInt("MAX_CONCURRENT_PIPELINES", 10)
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := getEnvInt("PIPELINE_TIMEOUT", 1200)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		CheckpointerType: getEnvOrDefault("CHECKPOINTER_TYPE", CheckpointerMemory),
		SQLiteDBPath:     getEnvOrDefault("SQLITE_DB_PATH", "orchestrator_checkpoints.db"),
		PostgresURL:      os.Getenv("POSTGRES_URL"),

		MaxTestRetries:     maxTestRetries,
		MaxGenFixRetries:   maxGenFixRetries,
		MaxReviewRetries:   maxReviewRetries,
		MaxResearchRetries: maxResearchRetries,

		MaxConcurrentPipelines: maxConcurrent,
		PipelineTimeout:        time.Duration(timeoutSeconds) * time.Second,

		GitHubOwner: os.Getenv("GITHUB_OWNER"),
		GitHubRepo:  os.Getenv("GITHUB_REPO"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	switch c.CheckpointerType {
	case CheckpointerMemory, CheckpointerSQLite, CheckpointerPostgres:
	default:
		return fmt.Errorf("CHECKPOINTER_TYPE must be one of memory|sqlite|postgres, got %q", c.CheckpointerType)
	}
	if c.CheckpointerType == CheckpointerPostgres && c.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL is required when CHECKPOINTER_TYPE=postgres")
	}
	if c.MaxConcurrentPipelines < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PIPELINES must be at least 1, got %d", c.MaxConcurrentPipelines)
	}
	if c.MaxTestRetries < 0 || c.MaxGenFixRetries < 0 || c.MaxReviewRetries < 0 || c.MaxResearchRetries < 0 {
		return fmt.Errorf("retry maximums must be non-negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
