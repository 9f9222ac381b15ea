package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": "9001",
		"credentials": {"dev": "secret"},
		"unsplash": {"accessKey": "abc123"},
		"variety": {"exploringLimit": 5}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9001" {
		t.Errorf("Port = %q, want 9001", cfg.Port)
	}
	if cfg.Unsplash.AccessKey != "abc123" {
		t.Errorf("AccessKey = %q", cfg.Unsplash.AccessKey)
	}
	if cfg.Variety.ExploringLimit != 5 {
		t.Errorf("ExploringLimit = %d, want the file's 5", cfg.Variety.ExploringLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.Variety.ExpandingLimit != 30 {
		t.Errorf("ExpandingLimit = %d, want default 30", cfg.Variety.ExpandingLimit)
	}
	if cfg.Unsplash.PageSize != 10 {
		t.Errorf("PageSize = %d, want default 10", cfg.Unsplash.PageSize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want default debug", cfg.LogLevel)
	}
}

func TestDatabaseConfig_Durations(t *testing.T) {
	cfg := Default()

	retention, err := cfg.Database.RetentionDuration()
	if err != nil {
		t.Fatalf("RetentionDuration: %v", err)
	}
	if retention != 30*24*time.Hour {
		t.Errorf("retention = %v, want 720h", retention)
	}

	cfg.Database.CleanupInterval = "nonsense"
	if _, err := cfg.Database.CleanupIntervalDuration(); err == nil {
		t.Error("expected an error for a malformed duration")
	}
}
