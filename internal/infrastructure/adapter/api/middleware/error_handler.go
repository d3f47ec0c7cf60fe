package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	domainerr "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// ErrorHandler middleware recovers from panics and renders errors that handlers
// attached with c.Error when nothing was written yet
func ErrorHandler(logger coreport.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered in API request", map[string]any{
					"error":      err,
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"client_ip":  c.ClientIP(),
					"request_id": coreport.RequestIDFrom(c.Request.Context()),
					"user_agent": c.Request.UserAgent(),
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:    domainerr.ErrorCode(domainerr.ErrInternalServer),
					Message: "Internal server error",
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		c.JSON(StatusCode(err), NewErrorResponse(err))
	}
}

// StatusCode maps a domain error to its HTTP status
func StatusCode(err error) int {
	switch domainerr.ErrorCode(err) {
	case domainerr.CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case domainerr.CodeInvalidAmount,
		domainerr.CodeInvalidAccountID,
		domainerr.CodeInvalidServiceType,
		domainerr.CodeInvalidRequest:
		return http.StatusBadRequest
	case domainerr.CodeAccountNotFound, domainerr.CodeEntryNotFound:
		return http.StatusNotFound
	case domainerr.CodeDuplicateAccount,
		domainerr.CodeInvalidReservationState,
		domainerr.CodeTrialAlreadyUsed,
		domainerr.CodeConstraintViolation:
		return http.StatusConflict
	case domainerr.CodeAccountLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the error body. Server errors never expose their cause.
func NewErrorResponse(err error) dto.ErrorResponse {
	code := domainerr.ErrorCode(err)
	if code == domainerr.CodeInternalServer {
		return dto.ErrorResponse{Code: code, Message: "Internal server error"}
	}

	resp := dto.ErrorResponse{Code: code, Message: err.Error()}

	var insufficient *domainerr.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		resp.Message = domainerr.ErrInsufficientCredits.Error()
		resp.Required = entity.FormatCredits(insufficient.Required)
		resp.Available = entity.FormatCredits(insufficient.Available)
		resp.Shortfall = entity.FormatCredits(insufficient.Shortfall())
	}
	return resp
}
