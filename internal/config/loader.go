package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the single configuration file format for summoner.jsonc
type Config struct {
	Server    ServerConfig    `json:"server"`
	Agent     AgentConfig     `json:"agent"`
	Bridge    BridgeConfig    `json:"bridge"`
	Events    EventsConfig    `json:"events"`
	Schedule  ScheduleConfig  `json:"schedule"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	ExportDir string          `json:"export_dir"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Address string `json:"address"`
}

// AgentConfig configures the claude CLI subprocess
type AgentConfig struct {
	Binary       string `json:"binary"`
	DefaultModel string `json:"default_model"`
	WorkingDir   string `json:"working_dir"`
}

// BridgeConfig tunes the tool command poll loop
type BridgeConfig struct {
	PollIntervalMS int `json:"poll_interval_ms"`
	MaxAttempts    int `json:"max_attempts"`
}

// EventsConfig sizes the frontend event buffer
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// ScheduleConfig controls the scheduled prompt runner
type ScheduleConfig struct {
	Enabled bool   `json:"enabled"`
	DataDir string `json:"data_dir"`
}

// RateLimitConfig bounds per-client request rates on the MCP endpoint
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Agent.Binary == "" {
		cfg.Agent.Binary = "claude"
	}
	if cfg.Bridge.PollIntervalMS <= 0 {
		cfg.Bridge.PollIntervalMS = 50
	}
	if cfg.Bridge.MaxAttempts <= 0 {
		cfg.Bridge.MaxAttempts = 200
	}
	if cfg.Events.BufferSize <= 0 {
		cfg.Events.BufferSize = 1000
	}
	if cfg.Schedule.DataDir == "" {
		cfg.Schedule.DataDir = "data"
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
}

// FindConfigPath returns the path to summoner.jsonc inside dir
func FindConfigPath(dir string) (string, error) {
	path := filepath.Join(dir, "summoner.jsonc")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("summoner.jsonc not found in %s", dir)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// Load reads and parses a summoner.jsonc file, filling in defaults for
// anything left unset. A missing file is not an error; defaults are used.
func Load(dir string) (*Config, error) {
	path, err := FindConfigPath(dir)
	if err != nil {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	jsonData := StripJSONComments(data)

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}
