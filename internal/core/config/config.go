package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"github.com/meridian-lab/project-meridian/internal/core/journey"
)

// Config represents the top-level application config plus resolved channel
// alias rules.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Channels    ChannelsConfig    `koanf:"channels"`
	Attribution AttributionConfig `koanf:"attribution"`

	// AliasRules is populated by Load after parsing alias rule files.
	AliasRules []channel.AliasRule `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type ChannelsConfig struct {
	AliasesDir string `koanf:"aliases_dir"`
}

type AttributionConfig struct {
	Enabled             bool    `koanf:"enabled"`
	CronInterval        string  `koanf:"cron_interval"`      // parsed and validated on startup
	InactivityHorizon   string  `koanf:"inactivity_horizon"` // Go duration or "Xd" days
	WorkerCount         int     `koanf:"worker_count"`
	BatchSize           int     `koanf:"batch_size"`
	SolverTolerance     float64 `koanf:"solver_tolerance"`
	SolverMaxIterations int     `koanf:"solver_max_iterations"`
}

// Horizon returns the parsed inactivity horizon. Only valid after Validate.
func (c AttributionConfig) Horizon() time.Duration {
	d, err := journey.ParseHorizon(c.InactivityHorizon)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	interval, err := time.ParseDuration(c.Attribution.CronInterval)
	if err != nil {
		return fmt.Errorf("invalid attribution.cron_interval %q: %w", c.Attribution.CronInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("attribution.cron_interval must be > 0")
	}
	if _, err := journey.ParseHorizon(c.Attribution.InactivityHorizon); err != nil {
		return fmt.Errorf("invalid attribution.inactivity_horizon: %w", err)
	}
	if c.Attribution.WorkerCount <= 0 {
		return fmt.Errorf("attribution.worker_count must be > 0")
	}
	if c.Attribution.BatchSize <= 0 {
		return fmt.Errorf("attribution.batch_size must be > 0")
	}
	if c.Attribution.SolverTolerance <= 0 {
		return fmt.Errorf("attribution.solver_tolerance must be > 0")
	}
	if c.Attribution.SolverMaxIterations <= 0 {
		return fmt.Errorf("attribution.solver_max_iterations must be > 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and validates
// channel alias rules.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                       8080,
		"server.host":                       "0.0.0.0",
		"server.max_body_size_mb":           1,
		"server.mode":                       "release",
		"database.type":                     "postgres",
		"database.dsn":                      "postgres://localhost:5432/meridian?sslmode=disable",
		"database.max_open_conns":           25,
		"database.max_idle_conns":           25,
		"database.auto_migrate":             true,
		"channels.aliases_dir":              "./config/channels",
		"attribution.enabled":               true,
		"attribution.cron_interval":         "5m",
		"attribution.inactivity_horizon":    "30d",
		"attribution.worker_count":          8,
		"attribution.batch_size":            50000,
		"attribution.solver_tolerance":      1e-9,
		"attribution.solver_max_iterations": 100000,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("MERIDIAN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "MERIDIAN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := channel.NewFileSystemAliasRepository(cfg.Channels.AliasesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel alias rules: %w", err)
	}
	cfg.AliasRules = repo.GetRules()

	return &cfg, nil
}
