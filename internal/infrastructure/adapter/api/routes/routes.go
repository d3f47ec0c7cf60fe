package routes

import (
	"github.com/gin-gonic/gin"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/handler"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes
type Handlers struct {
	Account     *handler.AccountHandler
	Reservation *handler.ReservationHandler
	Pricing     *handler.PricingHandler
	Admin       *handler.AdminHandler
	Health      *handler.HealthHandler
}

// SetupRoutes configures all the routes for the API
func SetupRoutes(router *gin.Engine, h Handlers) {
	accountRoutes := router.Group("/accounts")
	{
		accountRoutes.POST("", h.Account.CreateAccount)
		accountRoutes.GET("/:accountId/balance", h.Account.GetBalance)
		accountRoutes.GET("/:accountId/history", h.Account.GetHistory)
		accountRoutes.POST("/:accountId/trial", h.Account.GrantTrial)
		accountRoutes.POST("/:accountId/purchases", h.Account.Purchase)
		accountRoutes.POST("/:accountId/reservations", h.Reservation.Reserve)
	}

	reservationRoutes := router.Group("/reservations")
	{
		reservationRoutes.POST("/:entryId/confirm", h.Reservation.Confirm)
		reservationRoutes.POST("/:entryId/cancel", h.Reservation.Cancel)
	}

	router.POST("/pricing/quote", h.Pricing.Quote)

	adminRoutes := router.Group("/admin/accounts")
	{
		adminRoutes.GET("/:accountId/audit", h.Admin.Audit)
		adminRoutes.POST("/:accountId/adjustments", h.Admin.Adjust)
	}

	if h.Health != nil {
		router.GET("/health/live", h.Health.Live)
		router.GET("/health/ready", h.Health.Ready)
	}
}

// SetupMiddlewares configures global middlewares for the API
func SetupMiddlewares(
	router *gin.Engine,
	logger coreport.Logger,
	timeProvider coreport.TimeProvider,
	allowedOrigins []string,
) {
	// Request ID first so every later middleware can log it
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger, timeProvider))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS(allowedOrigins))
}
