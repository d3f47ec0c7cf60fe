package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment constants
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// EnvPrefix is the prefix of environment variables overriding the config file,
// e.g. CL_DATABASE_PASSWORD for database.password
const EnvPrefix = "CL"

// ConfigPaths defines the paths to look for config files
var ConfigPaths = []string{
	"./configs",
	"../configs",
	"../../configs",
}

// DotEnvPaths defines the paths to look for .env files
var DotEnvPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"./configs/.env",
	"../configs/.env",
}

// LoadConfig loads the .env file, then the yaml file of the current environment
func LoadConfig() (*Config, error) {
	if err := loadDotEnvFile(); err != nil {
		return nil, err
	}
	return Load(getEnvironment(), ConfigPaths...)
}

// Load reads <env>.yaml from the first path that has it. A missing file leaves the
// defaults in place; environment variables override both.
func Load(env string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(env)
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.Environment = env

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// loadDotEnvFile loads the first .env file found. Missing files are not an error;
// existing variables are never overwritten.
func loadDotEnvFile() error {
	for _, path := range DotEnvPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("could not load %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// setDefaults registers every key so environment variables can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "60s")
	v.SetDefault("server.readHeaderTimeout", "10s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.allowedOrigins", []string{"*"})

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 50)
	v.SetDefault("database.maxIdleConns", 25)
	v.SetDefault("database.connMaxLifetime", "30m")
	v.SetDefault("database.connMaxIdleTime", "15m")
	v.SetDefault("database.queryTimeout", "5s")
	v.SetDefault("database.retryAttempts", 3)
	v.SetDefault("database.retryDelay", "1s")
	v.SetDefault("database.isolationLevel", "read committed")
	v.SetDefault("database.lockTimeout", "5s")
	v.SetDefault("database.slowQueryThreshold", "200ms")
	v.SetDefault("database.poolCheckInterval", "30s")
	v.SetDefault("database.logLevel", "warn")
	v.SetDefault("database.autoMigrate", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.serviceName", "credit-ledger")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "ledger:balance:")
	v.SetDefault("redis.balanceTTL", "30s")
	v.SetDefault("redis.fillFence", "5s")
	v.SetDefault("redis.dialTimeout", "2s")
	v.SetDefault("redis.operationTimeout", "200ms")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "ledger.entries")
	v.SetDefault("kafka.clientId", "credit-ledger")
	v.SetDefault("kafka.requiredAcks", "all")
	v.SetDefault("kafka.maxRetries", 3)
	v.SetDefault("kafka.timeout", "10s")

	v.SetDefault("ledger.trialAmount", "10.00")
	v.SetDefault("ledger.trialDurationDays", 7)
	v.SetDefault("ledger.reservationTTL", "24h")
	v.SetDefault("ledger.sweepInterval", "1h")
	v.SetDefault("ledger.reservationSweepInterval", "15m")
	v.SetDefault("ledger.sweepBatchSize", 100)
	v.SetDefault("ledger.publishEvents", false)
	v.SetDefault("ledger.outboxInterval", "2s")
	v.SetDefault("ledger.outboxBatchSize", 100)
	v.SetDefault("ledger.outboxMaxRetries", 10)
	v.SetDefault("ledger.placeholderFingerprints", []string{
		"", "127.0.0.1", "::1", "localhost", "0.0.0.0", "unknown", "::ffff:127.0.0.1",
	})
	v.SetDefault("ledger.maxTxAttempts", 3)
	v.SetDefault("ledger.retryBackoff", "50ms")

	v.SetDefault("pricing.default.base", "1.00")
}

// getEnvironment determines the environment to use based on the CL_ENV environment variable
func getEnvironment() string {
	env := os.Getenv(EnvPrefix + "_ENV")
	if env == "" {
		env = Development
	}
	return strings.ToLower(env)
}
