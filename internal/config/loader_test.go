package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStripJSONComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"line comment", "{\n// comment\n\"a\": 1\n}", "{\n\n\"a\": 1\n}"},
		{"trailing line comment", `{"a": 1} // done`, `{"a": 1} `},
		{"block comment", `{/* hidden */"a": 1}`, `{"a": 1}`},
		{"slashes inside string", `{"url": "http://example.com"}`, `{"url": "http://example.com"}`},
		{"comment chars inside string", `{"a": "not // a comment"}`, `{"a": "not // a comment"}`},
		{"no comments", `{"a": 1}`, `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(StripJSONComments([]byte(tt.input)))
			if got != tt.want {
				t.Errorf("StripJSONComments() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("Address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.Agent.Binary != "claude" {
		t.Errorf("Binary = %q, want claude", cfg.Agent.Binary)
	}
	if cfg.Bridge.PollIntervalMS != 50 || cfg.Bridge.MaxAttempts != 200 {
		t.Errorf("Bridge defaults = %d/%d, want 50/200", cfg.Bridge.PollIntervalMS, cfg.Bridge.MaxAttempts)
	}
	if cfg.Events.BufferSize != 1000 {
		t.Errorf("BufferSize = %d, want 1000", cfg.Events.BufferSize)
	}
}

func TestLoad_ParsesJSONC(t *testing.T) {
	dir := t.TempDir()
	content := `{
  // Server settings
  "server": { "address": ":9000" },
  "agent": {
    "binary": "/usr/local/bin/claude", // absolute path
    "default_model": "sonnet"
  },
  "schedule": { "enabled": true, "data_dir": "scheds" }
}`
	if err := os.WriteFile(filepath.Join(dir, "summoner.jsonc"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":9000" {
		t.Errorf("Address = %q, want :9000", cfg.Server.Address)
	}
	if cfg.Agent.Binary != "/usr/local/bin/claude" {
		t.Errorf("Binary = %q", cfg.Agent.Binary)
	}
	if cfg.Agent.DefaultModel != "sonnet" {
		t.Errorf("DefaultModel = %q, want sonnet", cfg.Agent.DefaultModel)
	}
	if !cfg.Schedule.Enabled || cfg.Schedule.DataDir != "scheds" {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}

	// Unset sections still get defaults
	if cfg.Bridge.PollIntervalMS != 50 {
		t.Errorf("PollIntervalMS = %d, want default 50", cfg.Bridge.PollIntervalMS)
	}
	if cfg.ExportDir != "exports" {
		t.Errorf("ExportDir = %q, want exports", cfg.ExportDir)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "summoner.jsonc"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("Load() with malformed file should return error")
	}
}
