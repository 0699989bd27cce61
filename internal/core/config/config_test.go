package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.DatabaseURL != "sqlite://dataherd.db" {
		t.Errorf("DatabaseURL = %q, want default sqlite", cfg.DatabaseURL)
	}
	if cfg.PreviewTTL != 10*time.Minute {
		t.Errorf("PreviewTTL = %v, want 10m", cfg.PreviewTTL)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	os.Setenv("DH_SERVER_PORT", "9001")
	defer os.Unsetenv("DH_SERVER_PORT")

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.WriteString("server:\n  port: 9090\n"); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	cfg, err := LoadConfig(tmpfile.Name())
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Port != 9001 {
		t.Errorf("Port = %d, want env override 9001", cfg.Port)
	}
}

func TestLoadConfig_RejectsSecretsInFile(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.WriteString("llm:\n  api_key: sk-oops\n"); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	if _, err := LoadConfig(tmpfile.Name()); err == nil {
		t.Fatal("LoadConfig accepted an API key in a config file")
	}
}

func TestLoadConfig_ValidatesPort(t *testing.T) {
	os.Setenv("DH_SERVER_PORT", "70000")
	defer os.Unsetenv("DH_SERVER_PORT")

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("LoadConfig accepted an out-of-range port")
	}
}

func TestLoadConfig_ValidatesLogFormat(t *testing.T) {
	os.Setenv("DH_LOG_FORMAT", "xml")
	defer os.Unsetenv("DH_LOG_FORMAT")

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("LoadConfig accepted an unknown log format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
