package database

import (
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

// CreateConfigFromViperConfig adapts the loaded application configuration to database
// configuration. Zero values keep the defaults.
func CreateConfigFromViperConfig(conf *config.Config) *Config {
	src := conf.Database
	dbConf := DefaultConfig()

	dbConf.Host = src.Host
	dbConf.Username = src.Username
	dbConf.Password = src.Password
	dbConf.Database = src.Database

	if src.Port > 0 {
		dbConf.Port = src.Port
	}
	if src.SSLMode != "" {
		dbConf.SSLMode = src.SSLMode
	}
	if src.MaxOpenConns > 0 {
		dbConf.MaxOpenConns = src.MaxOpenConns
	}
	if src.MaxIdleConns > 0 {
		dbConf.MaxIdleConns = src.MaxIdleConns
	}
	if src.ConnMaxLifetime > 0 {
		dbConf.ConnMaxLifetime = src.ConnMaxLifetime
	}
	if src.ConnMaxIdleTime > 0 {
		dbConf.ConnMaxIdleTime = src.ConnMaxIdleTime
	}
	if src.QueryTimeout > 0 {
		dbConf.QueryTimeout = src.QueryTimeout
	}
	if src.RetryAttempts > 0 {
		dbConf.RetryAttempts = src.RetryAttempts
	}
	if src.RetryDelay > 0 {
		dbConf.RetryDelay = src.RetryDelay
	}
	if src.IsolationLevel != "" {
		dbConf.IsolationLevel = src.IsolationLevel
	}
	if src.LockTimeout >= 0 {
		dbConf.LockTimeout = src.LockTimeout
	}
	if src.SlowQueryThreshold > 0 {
		dbConf.SlowQueryThreshold = src.SlowQueryThreshold
	}
	if src.PoolCheckInterval > 0 {
		dbConf.PoolCheckInterval = src.PoolCheckInterval
	}
	if src.LogLevel != "" {
		dbConf.LogLevel = src.LogLevel
	}

	return dbConf
}
