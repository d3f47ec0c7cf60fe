package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	timeadapter "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
)

func TestManager_ConnectWith(t *testing.T) {
	cfg := validConfig()
	cfg.PoolCheckInterval = 0
	cfg.MaxOpenConns = 7

	clock := timeadapter.NewManualTimeProvider(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	manager := NewManager(cfg, logger.NewNoopLogger(), clock, []string{"127.0.0.1"})

	assert.Error(t, manager.Ping(context.Background()), "ping before connect")
	assert.Error(t, manager.Migrate(context.Background()), "migrate before connect")

	dialector, _ := NewMockDialector(t)
	db, err := manager.ConnectWith(context.Background(), dialector)
	require.NoError(t, err)

	assert.Same(t, db, manager.DB())
	assert.NotNil(t, manager.CreateUnitOfWork())
	assert.NotNil(t, manager.MigrationManager())
	assert.NotNil(t, manager.GetErrorMapper())
	assert.Equal(t, ConnectionPoolMetrics{}, manager.PoolMetrics())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, manager.Ping(context.Background()))
	assert.Equal(t, clock.Now(), db.NowFunc())

	require.NoError(t, manager.Close())
}

func TestManager_ConnectRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewManager(cfg, logger.NewNoopLogger(), timeadapter.NewManualTimeProvider(time.Now()), nil)

	_, err := manager.Connect(context.Background())
	assert.ErrorContains(t, err, "invalid database configuration")
}
