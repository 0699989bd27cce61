// Package config provides configuration management for the DataHerd service.
package config

import (
	"fmt"
	"os"
	"time"
)

// ServerConfig holds configuration for the DataHerd HTTP service.
type ServerConfig struct {
	Host            string
	Port            int
	DatabaseURL     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	PreviewTTL      time.Duration
	LLMModel        string
	LLMBaseURL      string
	LLMTimeout      time.Duration
	LogLevel        string
	LogFormat       string
	LogFile         string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8000,
		DatabaseURL:     "sqlite://dataherd.db",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		PreviewTTL:      10 * time.Minute,
		LLMModel:        "gpt-4",
		LLMTimeout:      30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// OpenAIAPIKey reads the model provider credential from the environment.
// Empty means no LLM is configured and translation runs pattern-only.
func OpenAIAPIKey() string {
	if v := os.Getenv("DH_OPENAI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("OPENAI_API_KEY")
}

// validateConfig checks port range and positive durations.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.ShutdownTimeout)
	}
	if cfg.PreviewTTL <= 0 {
		return fmt.Errorf("preview_ttl must be positive, got %v", cfg.PreviewTTL)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
