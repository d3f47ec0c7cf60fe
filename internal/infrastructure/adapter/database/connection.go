package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// openGorm opens a GORM session on dialector, logging through the core logger and
// stamping rows with the time provider's clock
func openGorm(dialector gorm.Dialector, config *Config, logger coreport.Logger, timeProvider coreport.TimeProvider) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewDatabaseLogger(logger, timeProvider, config.LogLevel, config.SlowQueryThreshold),
		NowFunc: func() time.Time {
			return timeProvider.Now()
		},
		// writes already run inside explicit units of work
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// configurePool applies the pool limits and verifies the connection
func configurePool(ctx context.Context, db *gorm.DB, config *Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
