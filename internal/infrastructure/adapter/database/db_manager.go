package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database/migration"
)

// Manager manages database connections
type Manager struct {
	config            *Config
	db                *gorm.DB
	logger            coreport.Logger
	errorMapper       *ErrorMapper
	migrationMgr      *migration.MigrationManager
	connectionMonitor *ConnectionPoolMonitor
	timeProvider      coreport.TimeProvider
	placeholders      []string
}

// NewManager creates a new database manager. placeholderFingerprints feed the trial
// fingerprint index created by the migrations.
func NewManager(config *Config, logger coreport.Logger, timeProvider coreport.TimeProvider, placeholderFingerprints []string) *Manager {
	return &Manager{
		config:       config,
		logger:       logger,
		errorMapper:  NewErrorMapper(),
		timeProvider: timeProvider,
		placeholders: placeholderFingerprints,
	}
}

// Connect validates the configuration and connects to PostgreSQL, retrying transient failures
func (m *Manager) Connect(ctx context.Context) (*gorm.DB, error) {
	if err := m.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	m.logger.Info("Connecting to database", map[string]any{
		"host": m.config.Host,
		"port": m.config.Port,
		"name": m.config.Database,
	})

	return m.ConnectWith(ctx, postgres.Open(m.config.DSN()))
}

// ConnectWith connects through an already built dialector
func (m *Manager) ConnectWith(ctx context.Context, dialector gorm.Dialector) (*gorm.DB, error) {
	retryConfig := RetryConfig{
		MaxRetries:    m.config.RetryAttempts,
		RetryInterval: m.config.RetryDelay,
		MaxInterval:   4 * m.config.RetryDelay,
		JitterFactor:  0.2,
	}

	var gormDB *gorm.DB
	err := RetryOnTransientError(ctx, retryConfig, func() error {
		db, err := openGorm(dialector, m.config, m.logger, m.timeProvider)
		if err != nil {
			return err
		}
		if err := configurePool(ctx, db, m.config); err != nil {
			closeQuietly(db)
			return err
		}
		gormDB = db
		return nil
	}, m.errorMapper, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", m.config.RetryAttempts, err)
	}

	m.db = gormDB
	m.migrationMgr = migration.NewMigrationManager(gormDB, m.logger, m.timeProvider, m.placeholders)

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	if m.config.PoolCheckInterval > 0 {
		m.connectionMonitor = NewConnectionPoolMonitor(sqlDB, m.logger, m.timeProvider, m.config.QueryTimeout)
		if err := m.connectionMonitor.Start(m.config.PoolCheckInterval); err != nil {
			m.logger.Warn("Failed to start connection pool monitoring", map[string]any{"error": err.Error()})
			m.connectionMonitor = nil
		}
	}

	m.logger.Info("Successfully connected to database", map[string]any{
		"max_open_conns":  m.config.MaxOpenConns,
		"max_idle_conns":  m.config.MaxIdleConns,
		"isolation_level": m.config.IsolationLevel,
		"lock_timeout":    m.config.LockTimeout.String(),
	})

	return m.db, nil
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Ping checks that the database answers within the query timeout
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return errors.New("database is not connected")
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return m.errorMapper.MapError(err, "ping")
	}
	return nil
}

// PoolMetrics returns the last sampled pool statistics
func (m *Manager) PoolMetrics() ConnectionPoolMetrics {
	if m.connectionMonitor == nil {
		return ConnectionPoolMetrics{}
	}
	return m.connectionMonitor.GetMetrics()
}

// Close stops monitoring and closes the database connection
func (m *Manager) Close() error {
	m.logger.Info("Closing database connection", nil)

	if m.connectionMonitor != nil {
		m.connectionMonitor.Stop()
	}
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// WithTimeout returns a context with timeout for database operations
func (m *Manager) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.config.QueryTimeout)
}

// CreateUnitOfWork creates a new UnitOfWork instance
func (m *Manager) CreateUnitOfWork() *UnitOfWork {
	return NewUnitOfWork(m.db, m.logger, m.config.IsolationLevel, m.config.LockTimeout)
}

// GetErrorMapper returns the error mapper
func (m *Manager) GetErrorMapper() *ErrorMapper {
	return m.errorMapper
}

// MigrationManager returns the migration manager
func (m *Manager) MigrationManager() *migration.MigrationManager {
	return m.migrationMgr
}

// Migrate brings the schema to the current version
func (m *Manager) Migrate(ctx context.Context) error {
	if m.migrationMgr == nil {
		return errors.New("database is not connected")
	}

	start := m.timeProvider.Now()
	if err := m.migrationMgr.MigrateAll(ctx); err != nil {
		return err
	}
	m.logger.Info("Schema is up to date", map[string]any{
		"version":  m.migrationMgr.CurrentSchemaVersion(),
		"duration": m.timeProvider.Since(start).Std().Round(time.Millisecond).String(),
	})
	return nil
}

func closeQuietly(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
