package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort     string `yaml:"api_port"`
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`

	BackendURL   string `yaml:"backend_url"`
	BackendToken string `yaml:"backend_token"`

	PollIntervalSeconds    int     `yaml:"poll_interval_seconds"`
	PollMaxAttempts        int     `yaml:"poll_max_attempts"`
	PollRateLimitRPS       float64 `yaml:"poll_rate_limit_rps"`
	RefreshIntervalSeconds int     `yaml:"refresh_interval_seconds"`
	NotificationTTLSeconds int     `yaml:"notification_ttl_seconds"`
	MaxUploadMB            int64   `yaml:"max_upload_mb"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `yaml:"api_rate_limit_burst"`

	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// Load reads the environment, then overlays an optional YAML file named by
// CONFIG_FILE. File values win over environment values so a deployment can pin
// its whole configuration in one place.
func Load() (Config, error) {
	cfg := Config{
		APIPort:     mustEnv("API_PORT", "8080"),
		MetricsPort: mustEnv("METRICS_PORT", "9090"),
		LogLevel:    mustEnv("LOG_LEVEL", "info"),

		BackendURL:   mustEnv("BACKEND_URL", "http://localhost:8000"),
		BackendToken: mustEnv("BACKEND_TOKEN", ""),

		PollIntervalSeconds:    mustEnvInt("POLL_INTERVAL_SECONDS", 2),
		PollMaxAttempts:        mustEnvInt("POLL_MAX_ATTEMPTS", 30),
		PollRateLimitRPS:       mustEnvFloat("POLL_RATE_LIMIT_RPS", 10),
		RefreshIntervalSeconds: mustEnvInt("REFRESH_INTERVAL_SECONDS", 30),
		NotificationTTLSeconds: mustEnvInt("NOTIFICATION_TTL_SECONDS", 3),
		MaxUploadMB:            int64(mustEnvInt("MAX_UPLOAD_MB", 50)),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "guardian.images.status"),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 50),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 100),

		CacheTTLSeconds: mustEnvInt("CACHE_TTL_SECONDS", 300),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
