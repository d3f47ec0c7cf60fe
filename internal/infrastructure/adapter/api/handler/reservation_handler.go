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

// ReservationHandler handles the reserve, confirm and cancel requests of a job
type ReservationHandler struct {
	ledger     usecase.LedgerUseCase
	calculator usecase.CostCalculator
	logger     coreport.Logger
}

// NewReservationHandler creates a new reservation handler instance
func NewReservationHandler(
	ledger usecase.LedgerUseCase,
	calculator usecase.CostCalculator,
	logger coreport.Logger,
) *ReservationHandler {
	return &ReservationHandler{
		ledger:     ledger,
		calculator: calculator,
		logger:     logger,
	}
}

// Reserve handles POST /accounts/:accountId/reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}
	serviceType, err := entity.ParseServiceType(req.ServiceType)
	if err != nil {
		badRequest(c, err, "Invalid service type: "+req.ServiceType)
		return
	}

	metadata := req.Metadata
	var amount int64
	switch {
	case req.Amount != "":
		amount, err = entity.ParseCredits(req.Amount)
		if err != nil {
			badRequest(c, err, "Invalid amount: "+err.Error())
			return
		}
	case req.Shape != nil:
		amount, err = h.calculator.ComputeCost(serviceType, toShape(*req.Shape))
		if err != nil {
			fail(c, h.logger, "Error pricing reservation", err, map[string]any{
				"account_id":   accountID,
				"service_type": serviceType,
			})
			return
		}
		metadata = withShape(metadata, *req.Shape)
	default:
		badRequest(c, domainerr.ErrInvalidRequest, "Either amount or shape is required")
		return
	}

	ctx := c.Request.Context()
	entryID, err := h.ledger.Reserve(ctx, usecase.ReserveRequest{
		AccountID:   accountID,
		Amount:      amount,
		ServiceType: serviceType,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		Metadata:    metadata,
	})
	if err != nil {
		fail(c, h.logger, "Error reserving credits", err, map[string]any{
			"account_id":   accountID,
			"reference_id": req.ReferenceID,
			"amount":       amount,
		})
		return
	}

	entry, err := h.ledger.GetEntry(ctx, entryID)
	if err != nil {
		fail(c, h.logger, "Error reading reservation", err, map[string]any{"entry_id": entryID})
		return
	}

	c.JSON(http.StatusCreated, dto.ReserveResponse{
		EntryID:   entryID,
		AccountID: accountID,
		Amount:    entity.FormatCredits(entry.ReservedAmount()),
		Balance:   entity.FormatCredits(entry.BalanceAfter),
	})
}

// Confirm handles POST /reservations/:entryId/confirm
func (h *ReservationHandler) Confirm(c *gin.Context) {
	entryID, ok := entryIDParam(c)
	if !ok {
		return
	}

	var req dto.ConfirmRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}

	settlement := usecase.AsReserved()
	if req.ActualAmount != nil {
		actual, err := entity.ParseCredits(*req.ActualAmount)
		if err != nil {
			badRequest(c, err, "Invalid actual amount: "+err.Error())
			return
		}
		settlement = usecase.AtActual(actual)
	}

	h.settle(c, entryID, "confirm", func() error {
		return h.ledger.Confirm(c.Request.Context(), entryID, settlement)
	})
}

// Cancel handles POST /reservations/:entryId/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	entryID, ok := entryIDParam(c)
	if !ok {
		return
	}

	h.settle(c, entryID, "cancel", func() error {
		return h.ledger.Cancel(c.Request.Context(), entryID)
	})
}

// settle runs a settlement and responds with the settled reservation entry
func (h *ReservationHandler) settle(c *gin.Context, entryID uint64, action string, run func() error) {
	if err := run(); err != nil {
		fail(c, h.logger, "Error settling reservation", err, map[string]any{
			"entry_id": entryID,
			"action":   action,
		})
		return
	}

	entry, err := h.ledger.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		fail(c, h.logger, "Error reading reservation", err, map[string]any{"entry_id": entryID})
		return
	}

	c.JSON(http.StatusOK, dto.NewEntryResponse(entry))
}
