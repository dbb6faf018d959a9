package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.MaxConcurrentAnalyses != DefaultMaxConcurrentAnalyses {
		t.Errorf("MaxConcurrentAnalyses = %d, want %d", cfg.MaxConcurrentAnalyses, DefaultMaxConcurrentAnalyses)
	}
	if cfg.Azure.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.Azure.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Webhook.DownloadTimeout != DefaultDownloadTimeout {
		t.Errorf("DownloadTimeout = %v", cfg.Webhook.DownloadTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9100
  allowedOrigins:
    - https://app.example.com
azure:
  endpoint: https://cu.example.com
  key: file-key
  maxRetries: 5
webhook:
  apiKeys:
    - alpha
    - beta
maxConcurrentAnalyses: 8
logLevel: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Azure.Endpoint != "https://cu.example.com" || cfg.Azure.Key != "file-key" {
		t.Errorf("Azure = %+v", cfg.Azure)
	}
	if cfg.Azure.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Azure.MaxRetries)
	}
	if want := []string{"alpha", "beta"}; !reflect.DeepEqual(cfg.Webhook.APIKeys, want) {
		t.Errorf("APIKeys = %v, want %v", cfg.Webhook.APIKeys, want)
	}
	if cfg.MaxConcurrentAnalyses != 8 {
		t.Errorf("MaxConcurrentAnalyses = %d, want 8", cfg.MaxConcurrentAnalyses)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9100
azure:
  endpoint: https://file.example.com
  key: file-key
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9200")
	t.Setenv("AZURE_AI_SERVICE_ENDPOINT", "https://env.example.com")
	t.Setenv("WEBHOOK_API_KEYS", "one, two,three")
	t.Setenv("AZURE_POLL_INTERVAL", "500ms")
	t.Setenv("MAX_CONCURRENT_ANALYSES", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("Port = %d, env should win over file", cfg.Server.Port)
	}
	if cfg.Azure.Endpoint != "https://env.example.com" {
		t.Errorf("Endpoint = %q, env should win over file", cfg.Azure.Endpoint)
	}
	if cfg.Azure.Key != "file-key" {
		t.Errorf("Key = %q, file value should survive when env is unset", cfg.Azure.Key)
	}
	if want := []string{"one", "two", "three"}; !reflect.DeepEqual(cfg.Webhook.APIKeys, want) {
		t.Errorf("APIKeys = %v, want trimmed %v", cfg.Webhook.APIKeys, want)
	}
	if cfg.Azure.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.Azure.PollInterval)
	}
	if cfg.MaxConcurrentAnalyses != 12 {
		t.Errorf("MaxConcurrentAnalyses = %d, want 12", cfg.MaxConcurrentAnalyses)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("malformed YAML should fail")
	}
}
