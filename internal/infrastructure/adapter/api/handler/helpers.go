package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	domainerr "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// badRequest writes a 400 for malformed input that never reached the use case
func badRequest(c *gin.Context, err error, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Code:    domainerr.ErrorCode(err),
		Message: message,
	})
}

// fail logs a use case error and hands it to the error middleware for rendering
func fail(c *gin.Context, logger coreport.Logger, message string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error"] = err.Error()
	fields["request_id"] = coreport.RequestIDFrom(c.Request.Context())

	if domainerr.ErrorCode(err) == domainerr.CodeInternalServer {
		logger.Error(message, fields)
	} else {
		logger.Warn(message, fields)
	}
	_ = c.Error(err)
}

// bindOptionalJSON binds a request body that callers may leave out entirely,
// including chunked requests whose length is unknown until the body is read
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func accountIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("accountId"))
	if id == "" {
		badRequest(c, domainerr.ErrInvalidAccountID, "Invalid account ID")
		return "", false
	}
	return id, true
}

func entryIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("entryId"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid entry ID format")
		return 0, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter, falling back to def when absent
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, domainerr.ErrInvalidRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}

func toShape(s dto.ShapeRequest) usecase.RequestShape {
	return usecase.RequestShape{
		Pages:    s.Pages,
		Posts:    s.Posts,
		Profiles: s.Profiles,
		Comments: s.Comments,
		Items:    s.Items,
		Model:    s.Model,
	}
}

// withShape records the priced quantities next to the caller's metadata
func withShape(metadata map[string]any, s dto.ShapeRequest) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	shape := map[string]any{
		"pages":    s.Pages,
		"posts":    s.Posts,
		"profiles": s.Profiles,
		"comments": s.Comments,
		"items":    s.Items,
	}
	if s.Model != "" {
		shape["model"] = s.Model
	}
	out["shape"] = shape
	return out
}
