package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"netpool/pkg/pool"
)

// Config represents the full netpool service configuration
type Config struct {
	Address   string          `yaml:"address"`
	Pool      PoolConfig      `yaml:"pool"`
	Transport TransportConfig `yaml:"transport"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PoolConfig represents connection pool settings
type PoolConfig struct {
	MaxEntries         int    `yaml:"max_entries"`
	MaxMultiplex       int    `yaml:"max_multiplex"`
	Strategy           string `yaml:"strategy"` // first-fit | random | round-robin
	IdleTimeoutSeconds int    `yaml:"idle_timeout_seconds"`
}

// TransportConfig represents dialing settings
type TransportConfig struct {
	DialTimeoutSeconds int `yaml:"dial_timeout_seconds"`
}

// DatabaseConfig represents stats persistence settings
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	Path string `yaml:"path"` // file path for sqlite, DSN for mysql
}

// APIConfig represents the HTTP stats API settings
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Address: ":7070",
		Pool: PoolConfig{
			MaxEntries:         10,
			MaxMultiplex:       1,
			Strategy:           "first-fit",
			IdleTimeoutSeconds: 300,
		},
		Transport: TransportConfig{
			DialTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./netpool.db",
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *Config) {
	if addr := os.Getenv("NETPOOL_ADDR"); addr != "" {
		config.Address = addr
	}

	if strategy := os.Getenv("NETPOOL_STRATEGY"); strategy != "" {
		config.Pool.Strategy = strategy
	}

	if maxEntries := os.Getenv("NETPOOL_MAX_ENTRIES"); maxEntries != "" {
		if val, err := strconv.Atoi(maxEntries); err == nil {
			config.Pool.MaxEntries = val
		}
	}

	if maxMultiplex := os.Getenv("NETPOOL_MAX_MULTIPLEX"); maxMultiplex != "" {
		if val, err := strconv.Atoi(maxMultiplex); err == nil {
			config.Pool.MaxMultiplex = val
		}
	}

	if idle := os.Getenv("NETPOOL_IDLE_TIMEOUT"); idle != "" {
		if val, err := strconv.Atoi(idle); err == nil {
			config.Pool.IdleTimeoutSeconds = val
		}
	}

	if dbType := os.Getenv("NETPOOL_DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dbPath := os.Getenv("NETPOOL_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if c.Pool.MaxEntries < 1 {
		return fmt.Errorf("pool max entries must be at least 1")
	}

	if c.Pool.MaxMultiplex < 1 {
		return fmt.Errorf("pool max multiplex must be at least 1")
	}

	if c.Pool.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("pool idle timeout cannot be negative")
	}

	if _, err := pool.ParseStrategy(c.Pool.Strategy); err != nil {
		return err
	}

	switch c.Database.Type {
	case "", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// PoolSettings converts the yaml section into a pool.Config
func (c *Config) PoolSettings() (pool.Config, error) {
	strategy, err := pool.ParseStrategy(c.Pool.Strategy)
	if err != nil {
		return pool.Config{}, err
	}
	return pool.Config{
		MaxEntries:   c.Pool.MaxEntries,
		MaxMultiplex: c.Pool.MaxMultiplex,
		Strategy:     strategy,
		IdleTimeout:  time.Duration(c.Pool.IdleTimeoutSeconds) * time.Second,
	}, nil
}

// DialTimeout returns the transport dial timeout as a duration
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Transport.DialTimeoutSeconds) * time.Second
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// String returns a string representation of the configuration (for logging)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Address: %s, Strategy: %s, MaxEntries: %d, DB: %s, LogLevel: %s}",
		c.Address, c.Pool.Strategy, c.Pool.MaxEntries, c.Database.Path, c.Logging.Level)
}
