package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// RequestIDHeader carries the correlation ID of a request
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID reuses the caller's X-Request-ID or generates one, stores it in the
// request context and echoes it on the response
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Request = c.Request.WithContext(coreport.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
