/*
Package config resolves the runtime configuration of the case engine server.

RESOLUTION ORDER:
  defaults -> YAML file -> environment variables

  A missing file is not an error; the defaults plus environment are enough to
  run locally. cmd/server loads a .env file before calling Load so the same
  variables can live there.

ENVIRONMENT:
  PORT, HOST                       server listen address
  DB_PATH                          SQLite file (":memory:" allowed)
  REDIS_ENABLED, REDIS_ADDR,
  REDIS_PASSWORD, REDIS_DB         notification broker
  UNKNOWN_OFFICER_POLICY           quarantine | reject
  ORG_CHART_FILE                   YAML org chart replacing the built-in one
  SYNC_ENABLED, SYNC_INTERVAL_SECONDS
  RULES_SEED_FILE                  JSON/YAML rule document
  LOG_LEVEL, LOG_DEVELOPMENT
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/customs-les/case-engine/access"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Access    AccessConfig    `yaml:"access"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Rules     RulesConfig     `yaml:"rules"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Prefix    string `yaml:"prefix"`
	InboxSize int64  `yaml:"inbox_size"`
}

type AccessConfig struct {
	UnknownOfficerPolicy string `yaml:"unknown_officer_policy"`
	OrgChartFile         string `yaml:"org_chart_file"`
	Fallback             struct {
		SectorChief   string `yaml:"sector_chief"`
		Administrator string `yaml:"administrator"`
		Director      string `yaml:"director"`
	} `yaml:"fallback"`
}

type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type RulesConfig struct {
	// SeedFile is loaded at startup. Without one, SeedDefaults seeds the
	// built-in presets.
	SeedFile     string `yaml:"seed_file"`
	SeedDefaults bool   `yaml:"seed_defaults"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	cfg := Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{Path: "./data/case-engine.db"},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Prefix:    "case-engine",
			InboxSize: 100,
		},
		Access: AccessConfig{
			UnknownOfficerPolicy: string(access.PolicyQuarantine),
		},
		Scheduler: SchedulerConfig{Enabled: true, Interval: time.Minute},
		Rules:     RulesConfig{SeedDefaults: true},
		Log:       LogConfig{Level: "info"},
	}
	cfg.Access.Fallback.SectorChief = access.DefaultFallbackChain.SectorChief
	cfg.Access.Fallback.Administrator = access.DefaultFallbackChain.Administrator
	cfg.Access.Fallback.Director = access.DefaultFallbackChain.Director
	return cfg
}

// Load resolves configuration in priority order: defaults -> file -> env.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.Server.Host = envOrDefault("HOST", cfg.Server.Host)
	cfg.Server.Port = envInt("PORT", cfg.Server.Port)
	cfg.Server.CORSOrigins = envCSV("CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Database.Path = envOrDefault("DB_PATH", cfg.Database.Path)

	cfg.Redis.Enabled = envBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = envOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Access.UnknownOfficerPolicy = strings.ToLower(strings.TrimSpace(
		envOrDefault("UNKNOWN_OFFICER_POLICY", cfg.Access.UnknownOfficerPolicy)))
	cfg.Access.OrgChartFile = envOrDefault("ORG_CHART_FILE", cfg.Access.OrgChartFile)

	cfg.Scheduler.Enabled = envBool("SYNC_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.Interval = time.Duration(envInt("SYNC_INTERVAL_SECONDS", int(cfg.Scheduler.Interval.Seconds()))) * time.Second

	cfg.Rules.SeedFile = envOrDefault("RULES_SEED_FILE", cfg.Rules.SeedFile)
	cfg.Log.Level = envOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = envBool("LOG_DEVELOPMENT", cfg.Log.Development)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("missing DB_PATH")
	}
	if !access.UnknownOfficerPolicy(c.Access.UnknownOfficerPolicy).IsValid() {
		return fmt.Errorf("invalid unknown_officer_policy %q (want quarantine or reject)", c.Access.UnknownOfficerPolicy)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("missing REDIS_ADDR")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c AccessConfig) Policy() access.UnknownOfficerPolicy {
	return access.UnknownOfficerPolicy(c.UnknownOfficerPolicy)
}

func (c AccessConfig) FallbackChain() access.Chain {
	return access.Chain{
		SectorChief:   c.Fallback.SectorChief,
		Administrator: c.Fallback.Administrator,
		Director:      c.Fallback.Director,
	}
}

// NewLogger builds a production or development zap logger at the configured level.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		zc.Level = level
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
