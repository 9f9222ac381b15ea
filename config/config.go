package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// UnsplashConfig holds the configuration for the search provider.
type UnsplashConfig struct {
	AccessKey  string   `json:"accessKey"`
	PageSize   int      `json:"pageSize"`
	MaxPage    int      `json:"maxPage"`
	MinDelay   string   `json:"minDelay"`
	MaxDelay   string   `json:"maxDelay"`
	UserAgents []string `json:"userAgents"`
}

// VarietyConfig holds the policy constants for the variety engine.
type VarietyConfig struct {
	ExploringLimit int `json:"exploringLimit"`
	ExpandingLimit int `json:"expandingLimit"`
	ExploringPages int `json:"exploringPages"`
	ExpandingPages int `json:"expandingPages"`
	DeepPages      int `json:"deepPages"`
	ProbeStride    int `json:"probeStride"`
	ProbeAttempts  int `json:"probeAttempts"`
}

// DatabaseConfig holds the configuration for the history database.
type DatabaseConfig struct {
	Path            string `json:"path"`
	CleanupInterval string `json:"cleanupInterval"`
	Retention       string `json:"retention"`
}

// Config holds the application's configuration.
type Config struct {
	Port        string            `json:"port"`
	LogLevel    string            `json:"logLevel"`
	Credentials map[string]string `json:"credentials"`
	Unsplash    UnsplashConfig    `json:"unsplash"`
	Variety     VarietyConfig     `json:"variety"`
	Database    DatabaseConfig    `json:"database"`
}

// Load loads the configuration from a file.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with the standard policy values filled in.
func Default() *Config {
	return &Config{
		Port:     "8080",
		LogLevel: "debug",
		Unsplash: UnsplashConfig{
			PageSize: 10,
			MaxPage:  100,
			MinDelay: "1s",
			MaxDelay: "3s",
		},
		Variety: VarietyConfig{
			ExploringLimit: 10,
			ExpandingLimit: 30,
			ExploringPages: 1,
			ExpandingPages: 10,
			DeepPages:      100,
			ProbeStride:    7,
			ProbeAttempts:  5,
		},
		Database: DatabaseConfig{
			Path:            "gosplash.db",
			CleanupInterval: "1h",
			Retention:       "720h",
		},
	}
}

// RetentionDuration parses the history retention window.
func (c *DatabaseConfig) RetentionDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 0, fmt.Errorf("invalid retention %q: %w", c.Retention, err)
	}
	return d, nil
}

// CleanupIntervalDuration parses the purge interval.
func (c *DatabaseConfig) CleanupIntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid cleanupInterval %q: %w", c.CleanupInterval, err)
	}
	return d, nil
}
