package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the process-level file config (config.json), distinct from the
// per-scope ThreatConfig records the dashboard owns.
type Config struct {
	Bot     BotConfig     `json:"bot"`
	Storage StorageConfig `json:"storage"`
	Engine  EngineConfig  `json:"engine"`
	Logging LoggingConfig `json:"logging"`

	// Baseline threat tuning applied to scopes without an explicit config.
	Defaults *ThreatConfig `json:"defaults"`

	// Pre-seeded per-scope overrides; the dashboard updates these at runtime.
	Scopes map[string]*ThreatConfig `json:"scopes"`
}

type BotConfig struct {
	Token string `json:"token"`
}

type StorageConfig struct {
	DBPath string `json:"db_path"`
}

type EngineConfig struct {
	SweepIntervalSec   int `json:"sweep_interval_sec"`
	RetentionMinutes   int `json:"retention_minutes"`
	ResolveTimeoutSec  int `json:"resolve_timeout_sec"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

func (ec EngineConfig) SweepInterval() time.Duration {
	return time.Duration(ec.SweepIntervalSec) * time.Second
}

func (ec EngineConfig) Retention() time.Duration {
	return time.Duration(ec.RetentionMinutes) * time.Minute
}

func (ec EngineConfig) ResolveTimeout() time.Duration {
	return time.Duration(ec.ResolveTimeoutSec) * time.Second
}

// Load reads the file config and applies env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// LoadOrDefault falls back to defaults when the file is absent or broken.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = DefaultConfig()
		cfg.applyEnv()
	}
	return cfg
}

func (c *Config) applyEnv() {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Bot.Token = token
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Storage.DBPath = dbPath
	}
}

func (c *Config) normalize() {
	if c.Defaults == nil {
		c.Defaults = DefaultThreatConfig()
	}
	c.Defaults.Clamp()
	for _, tc := range c.Scopes {
		tc.Clamp()
	}
	if c.Engine.SweepIntervalSec <= 0 {
		c.Engine.SweepIntervalSec = 5
	}
	if c.Engine.RetentionMinutes <= 0 {
		c.Engine.RetentionMinutes = 30
	}
	if c.Engine.ResolveTimeoutSec <= 0 {
		c.Engine.ResolveTimeoutSec = 10
	}
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{DBPath: "citadel.db"},
		Engine: EngineConfig{
			SweepIntervalSec:  5,
			RetentionMinutes:  30,
			ResolveTimeoutSec: 10,
		},
		Logging: LoggingConfig{Level: "info", Path: "citadel.log"},
		Defaults: DefaultThreatConfig(),
	}
}

// Seed pushes the file-level defaults and scope overrides into a Store.
func (c *Config) Seed(store *Store) {
	if c.Defaults != nil {
		store.SetDefaults(c.Defaults)
	}
	for scopeID, tc := range c.Scopes {
		store.Set(scopeID, tc)
	}
}
