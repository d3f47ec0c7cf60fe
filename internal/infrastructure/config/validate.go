package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the settings that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("postgres driver requires database.host and database.database")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch strings.ToLower(c.Logger.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logger format: %s", c.Logger.Format)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when redis is enabled")
		}
		if c.Redis.BalanceTTL <= 0 {
			return errors.New("redis.balanceTTL must be positive")
		}
		if c.Redis.FillFence < 0 {
			return errors.New("redis.fillFence must be non-negative")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka is enabled")
		}
		if _, err := c.Kafka.Acks(); err != nil {
			return err
		}
	}

	if err := c.Ledger.validate(); err != nil {
		return err
	}

	if _, err := c.Pricing.Table(); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	return nil
}

func (l LedgerConfig) validate() error {
	if l.TrialDurationDays < 0 {
		return fmt.Errorf("ledger.trialDurationDays must be non-negative, got: %d", l.TrialDurationDays)
	}
	if l.ReservationTTL < 0 {
		return errors.New("ledger.reservationTTL must be non-negative")
	}
	if l.SweepInterval <= 0 {
		return errors.New("ledger.sweepInterval must be positive")
	}
	if l.ReservationTTL > 0 && l.ReservationSweepInterval <= 0 {
		return errors.New("ledger.reservationSweepInterval must be positive when reservationTTL is set")
	}
	if l.SweepBatchSize <= 0 {
		return fmt.Errorf("ledger.sweepBatchSize must be positive, got: %d", l.SweepBatchSize)
	}
	if l.PublishEvents {
		if l.OutboxInterval <= 0 {
			return errors.New("ledger.outboxInterval must be positive when events are published")
		}
		if l.OutboxBatchSize <= 0 {
			return errors.New("ledger.outboxBatchSize must be positive when events are published")
		}
	}
	if l.MaxTxAttempts < 1 {
		return fmt.Errorf("ledger.maxTxAttempts must be at least 1, got: %d", l.MaxTxAttempts)
	}
	if _, err := l.ServiceConfig(); err != nil {
		return err
	}
	return nil
}
