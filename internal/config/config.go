package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Fund      FundConfig      `yaml:"fund"`
	Audit     AuditConfig     `yaml:"audit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// StorageConfig contains document storage settings
type StorageConfig struct {
	Type      string `yaml:"type"`       // "local" (dev) — cloud backends plug in behind the same interface
	UploadDir string `yaml:"upload_dir"` // for local storage
	BaseURL   string `yaml:"base_url"`   // base URL used in stored document references
}

// FundConfig contains fund policy settings
type FundConfig struct {
	DefaultInitialAmount string `yaml:"default_initial_amount"` // decimal string, e.g. "500"
	DefaultPeriodDays    int    `yaml:"default_period_days"`
	RenewalLimit         int32  `yaml:"renewal_limit"`
	ResponseSLADays      int    `yaml:"response_sla_days"`
	LockWaitMillis       int    `yaml:"lock_wait_ms"` // per-fund lock acquisition budget
}

// AuditConfig contains audit sink settings
type AuditConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ExpireFunds       string `yaml:"expire_funds"`
	ScheduledRenewals string `yaml:"scheduled_renewals"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Storage
	if val := os.Getenv("UPLOAD_DIR"); val != "" {
		c.Storage.UploadDir = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills policy defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Storage validation
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Type == "local" && c.Storage.UploadDir == "" {
		return fmt.Errorf("upload directory is required for local storage")
	}

	// Fund policy defaults
	if c.Fund.DefaultInitialAmount == "" {
		c.Fund.DefaultInitialAmount = "500"
	}
	if c.Fund.DefaultPeriodDays == 0 {
		c.Fund.DefaultPeriodDays = 365
	}
	if c.Fund.RenewalLimit == 0 {
		c.Fund.RenewalLimit = 10
	}
	if c.Fund.ResponseSLADays == 0 {
		c.Fund.ResponseSLADays = 15
	}
	if c.Fund.LockWaitMillis == 0 {
		c.Fund.LockWaitMillis = 2000
	}

	// Audit defaults
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 256
	}

	// Scheduler defaults
	if c.Scheduler.ExpireFunds == "" {
		c.Scheduler.ExpireFunds = "0 0 1 * * *" // 1 AM UTC
	}
	if c.Scheduler.ScheduledRenewals == "" {
		c.Scheduler.ScheduledRenewals = "0 30 1 * * *" // 1:30 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
