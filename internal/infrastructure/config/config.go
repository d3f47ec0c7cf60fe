package config

import "time"

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Logger      LoggerConfig   `mapstructure:"logger"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
	Pricing     PricingConfig  `mapstructure:"pricing"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout"`
	WriteTimeout      time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout       time.Duration `mapstructure:"idleTimeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout"`
	AllowedOrigins    []string      `mapstructure:"allowedOrigins"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver"` // postgres or memory
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	Database           string        `mapstructure:"database"`
	SSLMode            string        `mapstructure:"sslMode"`
	MaxOpenConns       int           `mapstructure:"maxOpenConns"`
	MaxIdleConns       int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime    time.Duration `mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"connMaxIdleTime"`
	QueryTimeout       time.Duration `mapstructure:"queryTimeout"`
	RetryAttempts      int           `mapstructure:"retryAttempts"`
	RetryDelay         time.Duration `mapstructure:"retryDelay"`
	IsolationLevel     string        `mapstructure:"isolationLevel"`
	LockTimeout        time.Duration `mapstructure:"lockTimeout"`
	SlowQueryThreshold time.Duration `mapstructure:"slowQueryThreshold"`
	PoolCheckInterval  time.Duration `mapstructure:"poolCheckInterval"`
	LogLevel           string        `mapstructure:"logLevel"`
	AutoMigrate        bool          `mapstructure:"autoMigrate"`
}

// LoggerConfig contains logger settings
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // json or console
	ServiceName string `mapstructure:"serviceName"`
}

// RedisConfig contains the balance cache settings
type RedisConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Addr             string        `mapstructure:"addr"`
	Password         string        `mapstructure:"password"`
	DB               int           `mapstructure:"db"`
	KeyPrefix        string        `mapstructure:"keyPrefix"`
	BalanceTTL       time.Duration `mapstructure:"balanceTTL"`
	FillFence        time.Duration `mapstructure:"fillFence"`
	DialTimeout      time.Duration `mapstructure:"dialTimeout"`
	OperationTimeout time.Duration `mapstructure:"operationTimeout"`
}

// KafkaConfig contains the event publisher settings
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	ClientID     string        `mapstructure:"clientId"`
	RequiredAcks string        `mapstructure:"requiredAcks"` // all, local or none
	MaxRetries   int           `mapstructure:"maxRetries"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LedgerConfig contains ledger behaviour and periodic job settings
type LedgerConfig struct {
	TrialAmount              string        `mapstructure:"trialAmount"` // credits, two decimals
	TrialDurationDays        int           `mapstructure:"trialDurationDays"`
	ReservationTTL           time.Duration `mapstructure:"reservationTTL"`
	SweepInterval            time.Duration `mapstructure:"sweepInterval"`
	ReservationSweepInterval time.Duration `mapstructure:"reservationSweepInterval"`
	SweepBatchSize           int           `mapstructure:"sweepBatchSize"`
	PublishEvents            bool          `mapstructure:"publishEvents"`
	OutboxInterval           time.Duration `mapstructure:"outboxInterval"`
	OutboxBatchSize          int           `mapstructure:"outboxBatchSize"`
	OutboxMaxRetries         int           `mapstructure:"outboxMaxRetries"`
	PlaceholderFingerprints  []string      `mapstructure:"placeholderFingerprints"`
	MaxTxAttempts            int           `mapstructure:"maxTxAttempts"`
	RetryBackoff             time.Duration `mapstructure:"retryBackoff"`
}

// PricingConfig is the pricing matrix. Rates are decimal strings in credits.
type PricingConfig struct {
	Default          RuleConfig            `mapstructure:"default"`
	Rules            map[string]RuleConfig `mapstructure:"rules"`
	ModelMultipliers map[string]string     `mapstructure:"modelMultipliers"`
}

// RuleConfig holds the unit rates of one service type
type RuleConfig struct {
	Base       string `mapstructure:"base"`
	PerPage    string `mapstructure:"perPage"`
	PerPost    string `mapstructure:"perPost"`
	PerProfile string `mapstructure:"perProfile"`
	PerComment string `mapstructure:"perComment"`
	PerItem    string `mapstructure:"perItem"`
	AIDriven   bool   `mapstructure:"aiDriven"`
}
