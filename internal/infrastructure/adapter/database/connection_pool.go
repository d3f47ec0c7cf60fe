package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// ConnectionPoolMetrics tracks database connection pool metrics
type ConnectionPoolMetrics struct {
	OpenConnections    int
	IdleConnections    int
	MaxOpenConnections int
	InUse              int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxLifetimeClosed  int64
	Healthy            bool
	CheckedAt          time.Time
}

// ConnectionPoolMonitor pings the database and samples pool statistics on an interval
type ConnectionPoolMonitor struct {
	sqlDB        *sql.DB
	logger       coreport.Logger
	timeProvider coreport.TimeProvider
	pingTimeout  time.Duration

	metricsCache *ConnectionPoolMetrics
	mutex        sync.RWMutex
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewConnectionPoolMonitor creates a new connection pool monitor
func NewConnectionPoolMonitor(sqlDB *sql.DB, logger coreport.Logger, timeProvider coreport.TimeProvider, pingTimeout time.Duration) *ConnectionPoolMonitor {
	return &ConnectionPoolMonitor{
		sqlDB:        sqlDB,
		logger:       logger,
		timeProvider: timeProvider,
		pingTimeout:  pingTimeout,
		stopChan:     make(chan struct{}),
	}
}

// Start collects metrics once and then every interval until Stop is called
func (m *ConnectionPoolMonitor) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got: %s", interval)
	}

	m.collectMetrics()

	ticker := time.NewTicker(interval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.collectMetrics()
			case <-m.stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop stops the monitoring and waits for the sampling goroutine to exit
func (m *ConnectionPoolMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

// GetMetrics returns the current connection pool metrics
func (m *ConnectionPoolMonitor) GetMetrics() ConnectionPoolMetrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.metricsCache == nil {
		return ConnectionPoolMetrics{}
	}

	return *m.metricsCache
}

func (m *ConnectionPoolMonitor) collectMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), m.pingTimeout)
	defer cancel()

	healthy := true
	if err := m.sqlDB.PingContext(ctx); err != nil {
		healthy = false
		m.logger.Error("Database ping failed", map[string]any{
			"error": err.Error(),
		})
	}

	stats := m.sqlDB.Stats()

	m.mutex.Lock()
	m.metricsCache = &ConnectionPoolMetrics{
		OpenConnections:    stats.OpenConnections,
		IdleConnections:    stats.Idle,
		MaxOpenConnections: stats.MaxOpenConnections,
		InUse:              stats.InUse,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
		Healthy:            healthy,
		CheckedAt:          m.timeProvider.Now(),
	}
	m.mutex.Unlock()

	threshold := float64(stats.MaxOpenConnections) * 0.8
	if stats.MaxOpenConnections > 0 && float64(stats.InUse) > threshold {
		m.logger.Warn("Database connection pool nearly exhausted", map[string]any{
			"in_use":     stats.InUse,
			"max_open":   stats.MaxOpenConnections,
			"idle":       stats.Idle,
			"wait_count": stats.WaitCount,
			"wait_time":  stats.WaitDuration.String(),
		})
		return
	}

	m.logger.Debug("Database connection pool stats", map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	})
}
