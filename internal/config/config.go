package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	ListenAddr string         `yaml:"listen_addr" env:"LISTEN_ADDR"`
	LogLevel   string         `yaml:"log_level" env:"LOG_LEVEL"`
	Keys       KeysConfig     `yaml:"keys"`
	Rotation   RotationConfig `yaml:"rotation"`
	Server     ServerConfig   `yaml:"server"`
	Audit      AuditConfig    `yaml:"audit"`
}

// KeysConfig holds key generation and storage configuration.
type KeysConfig struct {
	Preset       string `yaml:"preset" env:"KEYS_PRESET"`
	StoragePath  string `yaml:"storage_path" env:"KEYS_STORAGE_PATH"`
	AllowedRoot  string `yaml:"allowed_root" env:"KEYS_ALLOWED_ROOT"`
	ExpiryMonths int    `yaml:"expiry_months" env:"KEYS_EXPIRY_MONTHS"`
	AutoGenerate bool   `yaml:"auto_generate" env:"KEYS_AUTO_GENERATE"`
}

// RotationConfig holds rotation policy configuration.
type RotationConfig struct {
	GracePeriod     time.Duration `yaml:"grace_period" env:"ROTATION_GRACE_PERIOD"`
	CheckInterval   time.Duration `yaml:"check_interval" env:"ROTATION_CHECK_INTERVAL"`
	BackupEnabled   bool          `yaml:"backup_enabled" env:"ROTATION_BACKUP_ENABLED"`
	BackupRetention int           `yaml:"backup_retention" env:"ROTATION_BACKUP_RETENTION"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"SERVER_MAX_HEADER_BYTES"`
}

// AuditConfig holds audit logging configuration.
type AuditConfig struct {
	Enabled   bool `yaml:"enabled" env:"AUDIT_ENABLED"`
	MaxEvents int  `yaml:"max_events" env:"AUDIT_MAX_EVENTS"`
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment variable overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Keys: KeysConfig{
			Preset:       "NORMAL",
			StoragePath:  "./keys",
			ExpiryMonths: 6,
			AutoGenerate: true,
		},
		Rotation: RotationConfig{
			GracePeriod:     5 * time.Minute,
			CheckInterval:   time.Hour,
			BackupEnabled:   true,
			BackupRetention: 10,
		},
		Server: ServerConfig{
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxEvents: 10000,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadFromEnv(config *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("KEYS_PRESET"); v != "" {
		config.Keys.Preset = v
	}
	if v := os.Getenv("KEYS_STORAGE_PATH"); v != "" {
		config.Keys.StoragePath = v
	}
	if v := os.Getenv("KEYS_ALLOWED_ROOT"); v != "" {
		config.Keys.AllowedRoot = v
	}
	if v := os.Getenv("KEYS_EXPIRY_MONTHS"); v != "" {
		if months, err := strconv.Atoi(v); err == nil {
			config.Keys.ExpiryMonths = months
		}
	}
	if v := os.Getenv("KEYS_AUTO_GENERATE"); v != "" {
		config.Keys.AutoGenerate = v == "true" || v == "1"
	}
	if v := os.Getenv("ROTATION_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Rotation.GracePeriod = d
		}
	}
	if v := os.Getenv("ROTATION_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Rotation.CheckInterval = d
		}
	}
	if v := os.Getenv("ROTATION_BACKUP_ENABLED"); v != "" {
		config.Rotation.BackupEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ROTATION_BACKUP_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Rotation.BackupRetention = n
		}
	}
	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		config.Audit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AUDIT_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Audit.MaxEvents = n
		}
	}
}

// Validate checks the configuration for coherence.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if c.LogLevel != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[c.LogLevel] {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
		}
	}

	if c.Keys.Preset != "NORMAL" && c.Keys.Preset != "HIGH_SECURITY" {
		return fmt.Errorf("invalid keys.preset: %s (must be NORMAL or HIGH_SECURITY)", c.Keys.Preset)
	}

	if c.Keys.StoragePath == "" {
		return fmt.Errorf("keys.storage_path is required")
	}

	if c.Keys.ExpiryMonths < 1 || c.Keys.ExpiryMonths > 12 {
		return fmt.Errorf("keys.expiry_months must be between 1 and 12, got %d", c.Keys.ExpiryMonths)
	}

	if c.Rotation.GracePeriod <= 0 {
		return fmt.Errorf("rotation.grace_period must be positive")
	}

	if c.Rotation.CheckInterval <= 0 {
		return fmt.Errorf("rotation.check_interval must be positive")
	}

	if c.Audit.Enabled && c.Audit.MaxEvents <= 0 {
		return fmt.Errorf("audit.max_events must be positive when audit is enabled")
	}

	return nil
}
