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

// AdminHandler serves operator endpoints
type AdminHandler struct {
	ledger usecase.LedgerUseCase
	logger coreport.Logger
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(ledger usecase.LedgerUseCase, logger coreport.Logger) *AdminHandler {
	return &AdminHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Audit handles GET /admin/accounts/:accountId/audit
func (h *AdminHandler) Audit(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	report, err := h.ledger.VerifyAccount(c.Request.Context(), accountID)
	if err != nil {
		fail(c, h.logger, "Error auditing account", err, map[string]any{"account_id": accountID})
		return
	}

	c.JSON(http.StatusOK, dto.AuditResponse{
		AccountID:  report.AccountID,
		Balance:    entity.FormatCredits(report.Balance),
		LedgerSum:  entity.FormatCredits(report.LedgerSum),
		EntryCount: report.EntryCount,
		Consistent: report.Consistent,
		CheckedAt:  report.CheckedAt,
	})
}

// Adjust handles POST /admin/accounts/:accountId/adjustments
func (h *AdminHandler) Adjust(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}
	delta, err := entity.ParseSignedCredits(req.Delta)
	if err != nil {
		badRequest(c, err, "Invalid delta: "+err.Error())
		return
	}

	entry, err := h.ledger.AdminAdjust(c.Request.Context(), accountID, delta, req.Description)
	if err != nil {
		fail(c, h.logger, "Error applying adjustment", err, map[string]any{
			"account_id": accountID,
			"delta":      delta,
		})
		return
	}

	h.logger.Info("Admin adjustment applied", map[string]any{
		"account_id": accountID,
		"entry_id":   entry.ID,
		"delta":      delta,
		"request_id": coreport.RequestIDFrom(c.Request.Context()),
	})
	c.JSON(http.StatusCreated, dto.NewEntryResponse(entry))
}
