package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all atelier server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	BackendURL   string `json:"backend_url"`
	DBPath       string `json:"db_path"`
	LogLevel     string `json:"log_level"`
	RetryMax     int    `json:"retry_max"`
	RetryDelayMs int    `json:"retry_delay_ms"`
}

func defaultConfig() Config {
	return Config{
		BackendURL:   "http://localhost:8000/generate",
		DBPath:       filepath.Join(atelierDir(), "atelier.db"),
		LogLevel:     "info",
		RetryMax:     2,
		RetryDelayMs: 500,
	}
}

func atelierDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".atelier"
	}
	return filepath.Join(home, ".atelier")
}

func settingsPath() string {
	return filepath.Join(atelierDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("ATELIER_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("ATELIER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ATELIER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ATELIER_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMax = n
		}
	}
	if v := os.Getenv("ATELIER_RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryDelayMs = n
		}
	}

	return cfg
}

func (c Config) retryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}
