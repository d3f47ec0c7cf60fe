package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transaction isolation levels accepted by Config.IsolationLevel
const (
	IsolationReadCommitted  = "read committed"
	IsolationRepeatableRead = "repeatable read"
	IsolationSerializable   = "serializable"
)

// Config represents database configuration
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Database           string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	QueryTimeout       time.Duration
	LogLevel           string
	SlowQueryThreshold time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	IsolationLevel     string
	LockTimeout        time.Duration // 0 waits for row locks indefinitely
	PoolCheckInterval  time.Duration
}

// DefaultConfig returns a Config with default values.
// Connection credentials have no defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:               5432,
		SSLMode:            "disable",
		MaxOpenConns:       25,
		MaxIdleConns:       25,
		ConnMaxLifetime:    5 * time.Minute,
		ConnMaxIdleTime:    5 * time.Minute,
		QueryTimeout:       10 * time.Second,
		LogLevel:           "warn",
		SlowQueryThreshold: 200 * time.Millisecond,
		RetryAttempts:      3,
		RetryDelay:         2 * time.Second,
		IsolationLevel:     IsolationReadCommitted,
		LockTimeout:        5 * time.Second,
		PoolCheckInterval:  30 * time.Second,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Port)
	}
	if c.Username == "" {
		return errors.New("database username is required")
	}
	if c.Database == "" {
		return errors.New("database name is required")
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
		"prefer":      true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s", c.SSLMode)
	}

	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be positive, got: %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns <= 0 {
		return fmt.Errorf("max idle connections must be positive, got: %d", c.MaxIdleConns)
	}
	if c.QueryTimeout <= 0 {
		return errors.New("query timeout must be positive")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got: %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative, got: %s", c.RetryDelay)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock timeout must be non-negative, got: %s", c.LockTimeout)
	}

	switch strings.ToLower(c.IsolationLevel) {
	case IsolationReadCommitted, IsolationRepeatableRead, IsolationSerializable:
	default:
		return fmt.Errorf("invalid isolation level: %s", c.IsolationLevel)
	}

	validLogLevels := map[string]bool{
		"silent": true,
		"debug":  true,
		"info":   true,
		"warn":   true,
		"error":  true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// WithMaxOpenConnections returns a copy of the config with updated max open connections
func (c *Config) WithMaxOpenConnections(max int) *Config {
	newConfig := *c
	newConfig.MaxOpenConns = max
	return &newConfig
}

// WithIsolationLevel returns a copy of the config with another transaction isolation level
func (c *Config) WithIsolationLevel(level string) *Config {
	newConfig := *c
	newConfig.IsolationLevel = level
	return &newConfig
}
