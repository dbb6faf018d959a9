// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Environment always wins so that
// deployments can keep secrets out of the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultPort                  = 8000
	DefaultMaxConcurrentAnalyses = 5
	DefaultMaxRetries            = 3
	DefaultPollInterval          = 2 * time.Second
	DefaultDownloadTimeout       = 60 * time.Second
	DefaultCallbackTimeout       = 30 * time.Second
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Azure struct {
		Endpoint     string        `yaml:"endpoint"`
		Key          string        `yaml:"key"`
		MaxRetries   int           `yaml:"maxRetries"`
		PollInterval time.Duration `yaml:"pollInterval"`
	} `yaml:"azure"`

	Webhook struct {
		APIKeys         []string      `yaml:"apiKeys"`
		DownloadTimeout time.Duration `yaml:"downloadTimeout"`
		CallbackTimeout time.Duration `yaml:"callbackTimeout"`
		EnableS3        bool          `yaml:"enableS3"`
	} `yaml:"webhook"`

	MaxConcurrentAnalyses int    `yaml:"maxConcurrentAnalyses"`
	LogLevel              string `yaml:"logLevel"`
}

// Load reads the YAML file at path when it exists, then applies
// environment overrides and defaults. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Env-only configuration is fine.
		default:
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("AZURE_AI_SERVICE_ENDPOINT"); v != "" {
		c.Azure.Endpoint = v
	}
	if v := os.Getenv("AZURE_AI_SERVICE_KEY"); v != "" {
		c.Azure.Key = v
	}
	if v := os.Getenv("AZURE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Azure.MaxRetries = n
		}
	}
	if v := os.Getenv("AZURE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Azure.PollInterval = d
		}
	}
	if v := os.Getenv("WEBHOOK_API_KEYS"); v != "" {
		c.Webhook.APIKeys = splitList(v)
	}
	if v := os.Getenv("WEBHOOK_DOWNLOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Webhook.DownloadTimeout = d
		}
	}
	if v := os.Getenv("WEBHOOK_CALLBACK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Webhook.CallbackTimeout = d
		}
	}
	if v := os.Getenv("WEBHOOK_ENABLE_S3"); v != "" {
		c.Webhook.EnableS3 = v == "true" || v == "1"
	}
	if v := os.Getenv("MAX_CONCURRENT_ANALYSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentAnalyses = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Azure.MaxRetries <= 0 {
		c.Azure.MaxRetries = DefaultMaxRetries
	}
	if c.Azure.PollInterval <= 0 {
		c.Azure.PollInterval = DefaultPollInterval
	}
	if c.Webhook.DownloadTimeout <= 0 {
		c.Webhook.DownloadTimeout = DefaultDownloadTimeout
	}
	if c.Webhook.CallbackTimeout <= 0 {
		c.Webhook.CallbackTimeout = DefaultCallbackTimeout
	}
	if c.MaxConcurrentAnalyses <= 0 {
		c.MaxConcurrentAnalyses = DefaultMaxConcurrentAnalyses
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
