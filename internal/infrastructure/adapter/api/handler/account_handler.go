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

// AccountHandler handles account, balance and top-up requests
type AccountHandler struct {
	ledger usecase.LedgerUseCase
	logger coreport.Logger
}

// NewAccountHandler creates a new account handler instance
func NewAccountHandler(ledger usecase.LedgerUseCase, logger coreport.Logger) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
		logger: logger,
	}
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), req.AccountID)
	if err != nil {
		fail(c, h.logger, "Error creating account", err, map[string]any{"account_id": req.AccountID})
		return
	}

	c.JSON(http.StatusCreated, dto.NewAccountResponse(account))
}

// GetBalance handles GET /accounts/:accountId/balance
func (h *AccountHandler) GetBalance(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		fail(c, h.logger, "Error getting account balance", err, map[string]any{"account_id": accountID})
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		AccountID: accountID,
		Balance:   entity.FormatCredits(balance),
	})
}

// GetHistory handles GET /accounts/:accountId/history?limit=&offset=
func (h *AccountHandler) GetHistory(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	page, err := h.ledger.GetHistory(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		fail(c, h.logger, "Error getting account history", err, map[string]any{"account_id": accountID})
		return
	}

	entries := make([]dto.EntryResponse, 0, len(page.Entries))
	for _, e := range page.Entries {
		entries = append(entries, dto.NewEntryResponse(e))
	}
	c.JSON(http.StatusOK, dto.HistoryResponse{
		AccountID: accountID,
		Entries:   entries,
		Total:     page.Total,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

// GrantTrial handles POST /accounts/:accountId/trial
func (h *AccountHandler) GrantTrial(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var req dto.TrialRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}
	fingerprint := req.Fingerprint
	if fingerprint == "" {
		fingerprint = c.ClientIP()
	}

	ctx := c.Request.Context()
	if err := h.ledger.GrantTrial(ctx, accountID, fingerprint); err != nil {
		fail(c, h.logger, "Error granting trial", err, map[string]any{"account_id": accountID})
		return
	}

	balance, err := h.ledger.GetBalance(ctx, accountID)
	if err != nil {
		fail(c, h.logger, "Error getting account balance", err, map[string]any{"account_id": accountID})
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		AccountID: accountID,
		Balance:   entity.FormatCredits(balance),
	})
}

// Purchase handles POST /accounts/:accountId/purchases
func (h *AccountHandler) Purchase(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid request format: "+err.Error())
		return
	}
	amount, err := entity.ParseCredits(req.Amount)
	if err != nil {
		badRequest(c, err, "Invalid amount: "+err.Error())
		return
	}

	entry, err := h.ledger.Purchase(c.Request.Context(), accountID, amount, req.ReferenceID, req.Description)
	if err != nil {
		fail(c, h.logger, "Error processing purchase", err, map[string]any{
			"account_id":   accountID,
			"reference_id": req.ReferenceID,
		})
		return
	}

	c.JSON(http.StatusCreated, dto.NewEntryResponse(entry))
}
