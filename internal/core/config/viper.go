package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultServerConfig
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.database_url", "sqlite://dataherd.db")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.preview_ttl", "10m")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	// Bind environment variables with DH_ prefix
	v.SetEnvPrefix("DH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:            v.GetString("server.host"),
		Port:            v.GetInt("server.port"),
		DatabaseURL:     v.GetString("server.database_url"),
		RequestTimeout:  v.GetDuration("server.request_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		PreviewTTL:      v.GetDuration("server.preview_ttl"),
		LLMModel:        v.GetString("llm.model"),
		LLMBaseURL:      v.GetString("llm.base_url"),
		LLMTimeout:      v.GetDuration("llm.timeout"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		LogFile:         v.GetString("log.file"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig rejects API keys placed in config files.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range []string{"openai_api_key", "llm.openai_api_key", "llm.api_key", "api_key"} {
		if v.IsSet(key) {
			return fmt.Errorf("API keys not allowed in config files (use DH_OPENAI_API_KEY environment variable)")
		}
	}
	return nil
}
