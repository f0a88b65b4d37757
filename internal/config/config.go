package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config controls the HTTP server, the gateway retry policy, the session
// lifecycle timers, and the durable usage-log sinks.
type Config struct {
	Addr string

	GatewayMaxAttempts int
	GatewayBaseDelay   time.Duration

	FlushInterval time.Duration
	SweepInterval time.Duration
	IdleThreshold time.Duration

	LogFile      string
	GitHubOwner  string
	GitHubRepo   string
	GitHubPath   string
	GitHubBranch string
	GitHubToken  string

	StoreMaxAttempts int
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		Addr:               ":3001",
		GatewayMaxAttempts: 3,
		GatewayBaseDelay:   2 * time.Second,
		FlushInterval:      5 * time.Minute,
		SweepInterval:      30 * time.Minute,
		IdleThreshold:      30 * time.Minute,
		LogFile:            filepath.Join("data", "usage-log.json"),
		GitHubPath:         "usage-data.json",
		GitHubBranch:       "main",
		StoreMaxAttempts:   3,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_ADDR")); value != "" {
		cfg.Addr = value
	}
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_LOG_FILE")); value != "" {
		cfg.LogFile = value
	}
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_GATEWAY_RETRIES")); value != "" {
		attempts, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEAFORGE_GATEWAY_RETRIES: %w", err)
		}
		cfg.GatewayMaxAttempts = attempts
	}
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_GATEWAY_BASE_DELAY")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEAFORGE_GATEWAY_BASE_DELAY: %w", err)
		}
		cfg.GatewayBaseDelay = dur
	}
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_FLUSH_INTERVAL")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEAFORGE_FLUSH_INTERVAL: %w", err)
		}
		cfg.FlushInterval = dur
	}
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_SWEEP_INTERVAL")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEAFORGE_SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = dur
	}
	if value := strings.TrimSpace(os.Getenv("IDEAFORGE_IDLE_THRESHOLD")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEAFORGE_IDLE_THRESHOLD: %w", err)
		}
		cfg.IdleThreshold = dur
	}
	cfg.GitHubOwner = strings.TrimSpace(os.Getenv("GITHUB_OWNER"))
	cfg.GitHubRepo = strings.TrimSpace(os.Getenv("GITHUB_REPO"))
	cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	if value := strings.TrimSpace(os.Getenv("GITHUB_LOG_PATH")); value != "" {
		cfg.GitHubPath = value
	}
	if value := strings.TrimSpace(os.Getenv("GITHUB_BRANCH")); value != "" {
		cfg.GitHubBranch = value
	}
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RemoteStoreConfigured reports whether the GitHub-backed usage log can be
// used. Absence of any of the three values silently selects the file sink.
func (c Config) RemoteStoreConfigured() bool {
	return c.GitHubOwner != "" && c.GitHubRepo != "" && c.GitHubToken != ""
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaults.Addr
	}
	if strings.TrimSpace(cfg.LogFile) == "" {
		cfg.LogFile = defaults.LogFile
	}
	if cfg.GatewayMaxAttempts <= 0 {
		cfg.GatewayMaxAttempts = defaults.GatewayMaxAttempts
	}
	if cfg.GatewayBaseDelay <= 0 {
		cfg.GatewayBaseDelay = defaults.GatewayBaseDelay
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = defaults.IdleThreshold
	}
	if cfg.StoreMaxAttempts <= 0 {
		cfg.StoreMaxAttempts = defaults.StoreMaxAttempts
	}
	if strings.TrimSpace(cfg.GitHubPath) == "" {
		cfg.GitHubPath = defaults.GitHubPath
	}
	if strings.TrimSpace(cfg.GitHubBranch) == "" {
		cfg.GitHubBranch = defaults.GitHubBranch
	}
	return cfg
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("listen address required")
	}
	if strings.TrimSpace(c.LogFile) == "" {
		return fmt.Errorf("usage log file required")
	}
	if c.GatewayMaxAttempts <= 0 {
		return fmt.Errorf("gateway attempts must be positive")
	}
	if c.GatewayBaseDelay <= 0 {
		return fmt.Errorf("gateway base delay must be positive")
	}
	if c.FlushInterval <= 0 || c.SweepInterval <= 0 || c.IdleThreshold <= 0 {
		return fmt.Errorf("session timers must be positive")
	}
	return nil
}
