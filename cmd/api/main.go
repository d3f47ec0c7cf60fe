package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/ledger"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/outbox"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/pricing"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/handler"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/routes"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/cache"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/kafka"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/memory"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/scheduler"
	timeProvider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

func main() {
	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger, err := logger.NewZapLogger(logger.Options{
		Production:  cfg.Logger.Format == "json",
		Level:       cfg.Logger.Level,
		ServiceName: cfg.Logger.ServiceName,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLogger.Flush() }()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Service stopped with error", map[string]any{
			"error": err.Error(),
		})
		_ = appLogger.Flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger coreport.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp := timeProvider.NewRealTimeProvider()

	ledgerCfg, err := cfg.Ledger.ServiceConfig()
	if err != nil {
		return err
	}
	if cfg.Kafka.Enabled {
		ledgerCfg.EventTopic = cfg.Kafka.Topic
	}

	checks := map[string]handler.Pinger{}

	// Storage
	var uow persistence.UnitOfWork
	switch cfg.Database.Driver {
	case "postgres":
		dbManager := database.NewManager(database.CreateConfigFromViperConfig(cfg), appLogger, tp, ledgerCfg.PlaceholderFingerprints)
		if _, err := dbManager.Connect(ctx); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = dbManager.Close() }()

		if cfg.Database.AutoMigrate {
			if err := dbManager.Migrate(ctx); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		uow = dbManager.CreateUnitOfWork()
		checks["database"] = dbManager
	default:
		appLogger.Warn("Using the in-memory store, balances are lost on restart", nil)
		uow = memory.NewStore(appLogger, ledgerCfg.PlaceholderFingerprints)
	}

	// Balance cache
	var balanceCache cacheport.BalanceCache
	if cfg.Redis.Enabled {
		redisCache := cache.NewRedisBalanceCache(cache.NewRedisClient(cfg.Redis), appLogger, cfg.Redis)
		if err := redisCache.Ping(ctx); err != nil {
			appLogger.Warn("Redis unreachable at startup, reads fall back to the store", map[string]any{
				"addr":  cfg.Redis.Addr,
				"error": err.Error(),
			})
		}
		defer func() { _ = redisCache.Close() }()
		balanceCache = redisCache
		checks["redis"] = redisCache
	}

	ledgerService := ledger.NewService(uow, balanceCache, tp, appLogger, ledgerCfg)

	table, err := cfg.Pricing.Table()
	if err != nil {
		return fmt.Errorf("pricing table: %w", err)
	}
	calculator, err := pricing.NewCalculator(table, appLogger)
	if err != nil {
		return fmt.Errorf("pricing calculator: %w", err)
	}

	// Periodic jobs
	jobs := scheduler.NewScheduler(appLogger, tp)
	tasks := []scheduler.Task{
		scheduler.TrialSweepTask(ledgerService, cfg.Ledger.SweepInterval, cfg.Ledger.SweepBatchSize),
	}
	if ledgerCfg.ReservationTTL > 0 {
		tasks = append(tasks, scheduler.ReservationSweepTask(ledgerService, cfg.Ledger.ReservationSweepInterval, cfg.Ledger.SweepBatchSize))
	}

	if ledgerCfg.PublishEvents {
		if !cfg.Kafka.Enabled {
			appLogger.Warn("Ledger events are recorded but kafka is disabled, outbox rows stay pending", nil)
		} else {
			publisher, err := kafka.NewPublisher(cfg.Kafka, appLogger)
			if err != nil {
				return fmt.Errorf("kafka publisher: %w", err)
			}
			defer func() { _ = publisher.Close() }()

			relay := outbox.NewRelay(uow, publisher, tp, appLogger, outbox.Config{
				BatchSize:  cfg.Ledger.OutboxBatchSize,
				MaxRetries: cfg.Ledger.OutboxMaxRetries,
			})
			tasks = append(tasks, scheduler.OutboxRelayTask(relay, cfg.Ledger.OutboxInterval))
		}
	}

	for _, task := range tasks {
		if err := jobs.Register(task); err != nil {
			return err
		}
	}
	jobs.Start(ctx)
	defer jobs.Shutdown()

	// HTTP
	router := gin.New()
	routes.SetupMiddlewares(router, appLogger, tp, cfg.Server.AllowedOrigins)
	routes.SetupRoutes(router, routes.Handlers{
		Account:     handler.NewAccountHandler(ledgerService, appLogger),
		Reservation: handler.NewReservationHandler(ledgerService, calculator, appLogger),
		Pricing:     handler.NewPricingHandler(calculator, appLogger),
		Admin:       handler.NewAdminHandler(ledgerService, appLogger),
		Health:      handler.NewHealthHandler(checks, cfg.Database.QueryTimeout, appLogger),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting server", map[string]any{
			"addr":   server.Addr,
			"env":    cfg.Environment,
			"driver": cfg.Database.Driver,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", map[string]any{
			"error": err.Error(),
		})
	}

	appLogger.Info("Server exited gracefully", nil)
	return nil
}
