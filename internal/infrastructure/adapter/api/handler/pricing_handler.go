package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	domainerr "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// PricingHandler quotes job costs
type PricingHandler struct {
	calculator usecase.CostCalculator
	logger     coreport.Logger
}

// NewPricingHandler creates a new pricing handler instance
func NewPricingHandler(calculator usecase.CostCalculator, logger coreport.Logger) *PricingHandler {
	return &PricingHandler{
		calculator: calculator,
		logger:     logger,
	}
}

// Quote handles POST /pricing/quote
func (h *PricingHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}
	serviceType, err := entity.ParseServiceType(req.ServiceType)
	if err != nil {
		badRequest(c, err, "Invalid service type: "+req.ServiceType)
		return
	}

	cost, err := h.calculator.ComputeCost(serviceType, toShape(req.Shape))
	if err != nil {
		fail(c, h.logger, "Error computing quote", err, map[string]any{"service_type": serviceType})
		return
	}

	c.JSON(http.StatusOK, dto.QuoteResponse{
		ServiceType: string(serviceType),
		Cost:        entity.FormatCredits(cost),
	})
}
