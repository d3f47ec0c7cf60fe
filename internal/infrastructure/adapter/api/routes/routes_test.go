package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/ledger"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/pricing"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/handler"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/middleware"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/routes"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/memory"
	timeadapter "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newRouter(t *testing.T, checks map[string]handler.Pinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNoopLogger()
	clock := timeadapter.NewManualTimeProvider(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	cfg := ledger.DefaultConfig()
	store := memory.NewStore(log, cfg.PlaceholderFingerprints)
	svc := ledger.NewService(store, nil, clock, log, cfg)

	calc, err := pricing.NewCalculator(pricing.Table{
		Rules: map[entity.ServiceType]pricing.Rule{
			entity.ServiceWebExtraction: {
				Base:    decimal.RequireFromString("0.50"),
				PerPage: decimal.RequireFromString("0.02"),
			},
		},
		Default: pricing.Rule{Base: decimal.RequireFromString("1.00")},
	}, log)
	require.NoError(t, err)

	router := gin.New()
	routes.SetupMiddlewares(router, log, clock, nil)
	routes.SetupRoutes(router, routes.Handlers{
		Account:     handler.NewAccountHandler(svc, log),
		Reservation: handler.NewReservationHandler(svc, calc, log),
		Pricing:     handler.NewPricingHandler(calc, log),
		Admin:       handler.NewAdminHandler(svc, log),
		Health:      handler.NewHealthHandler(checks, time.Second, log),
	})
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createFunded(t *testing.T, router *gin.Engine, id, amount string) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/accounts", dto.CreateAccountRequest{AccountID: id})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	if amount != "" {
		w = do(t, router, http.MethodPost, "/accounts/"+id+"/purchases", dto.PurchaseRequest{
			Amount:      amount,
			ReferenceID: "order-" + id,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func balanceOf(t *testing.T, router *gin.Engine, id string) string {
	t.Helper()
	w := do(t, router, http.MethodGet, "/accounts/"+id+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[dto.BalanceResponse](t, w).Balance
}

func TestAccounts(t *testing.T) {
	router := newRouter(t, nil)

	w := do(t, router, http.MethodPost, "/accounts", dto.CreateAccountRequest{AccountID: "acct-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[dto.AccountResponse](t, w)
	assert.Equal(t, "acct-1", created.AccountID)
	assert.Equal(t, "0.00", created.Balance)
	assert.False(t, created.TrialGranted)

	t.Run("duplicate", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts", dto.CreateAccountRequest{AccountID: "acct-1"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errs.CodeDuplicateAccount, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("missing account id", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errs.CodeInvalidRequest, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("unknown account balance", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/accounts/ghost/balance", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, errs.CodeAccountNotFound, decode[dto.ErrorResponse](t, w).Code)
	})
}

func TestPurchase(t *testing.T) {
	router := newRouter(t, nil)
	createFunded(t, router, "acct-1", "")

	w := do(t, router, http.MethodPost, "/accounts/acct-1/purchases", dto.PurchaseRequest{
		Amount:      "12.50",
		ReferenceID: "order-1",
		Description: "Starter pack",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	entry := decode[dto.EntryResponse](t, w)
	assert.Equal(t, "12.50", entry.Amount)
	assert.Equal(t, "12.50", entry.BalanceAfter)
	assert.Equal(t, string(entity.KindPurchase), entry.Kind)
	assert.Equal(t, "12.50", balanceOf(t, router, "acct-1"))

	t.Run("rejects more than two decimals", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/purchases", dto.PurchaseRequest{
			Amount:      "1.005",
			ReferenceID: "order-2",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errs.CodeInvalidAmount, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/purchases", dto.PurchaseRequest{
			Amount:      "-3",
			ReferenceID: "order-3",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTrial(t *testing.T) {
	router := newRouter(t, nil)
	createFunded(t, router, "acct-1", "")
	createFunded(t, router, "acct-2", "")

	w := do(t, router, http.MethodPost, "/accounts/acct-1/trial", dto.TrialRequest{Fingerprint: "198.51.100.4"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "10.00", decode[dto.BalanceResponse](t, w).Balance)

	t.Run("second call is a no-op", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/trial", dto.TrialRequest{Fingerprint: "198.51.100.4"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10.00", decode[dto.BalanceResponse](t, w).Balance)
	})

	t.Run("fingerprint already used", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-2/trial", dto.TrialRequest{Fingerprint: "198.51.100.4"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errs.CodeTrialAlreadyUsed, decode[dto.ErrorResponse](t, w).Code)
		assert.Equal(t, "0.00", balanceOf(t, router, "acct-2"))
	})
}

func TestReservationLifecycle(t *testing.T) {
	router := newRouter(t, nil)
	createFunded(t, router, "acct-1", "10")

	reserve := func(body dto.ReserveRequest) dto.ReserveResponse {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/reservations", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode[dto.ReserveResponse](t, w)
	}

	t.Run("confirm at actual refunds the difference", func(t *testing.T) {
		res := reserve(dto.ReserveRequest{Amount: "4", ServiceType: "web_extraction", ReferenceID: "job-1"})
		assert.Equal(t, "4.00", res.Amount)
		assert.Equal(t, "6.00", res.Balance)

		actual := "2.50"
		w := do(t, router, http.MethodPost, fmt.Sprintf("/reservations/%d/confirm", res.EntryID),
			dto.ConfirmRequest{ActualAmount: &actual})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		entry := decode[dto.EntryResponse](t, w)
		assert.Equal(t, string(entity.StatusCompleted), entry.Status)
		assert.Equal(t, "-2.50", entry.Amount)
		assert.Equal(t, "7.50", balanceOf(t, router, "acct-1"))

		w = do(t, router, http.MethodPost, fmt.Sprintf("/reservations/%d/cancel", res.EntryID), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errs.CodeInvalidReservationState, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("confirm without a body charges the reserved amount", func(t *testing.T) {
		res := reserve(dto.ReserveRequest{Amount: "1.50", ServiceType: "export", ReferenceID: "job-2"})

		w := do(t, router, http.MethodPost, fmt.Sprintf("/reservations/%d/confirm", res.EntryID), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "-1.50", decode[dto.EntryResponse](t, w).Amount)
		assert.Equal(t, "6.00", balanceOf(t, router, "acct-1"))
	})

	t.Run("cancel releases the hold", func(t *testing.T) {
		res := reserve(dto.ReserveRequest{Amount: "3", ServiceType: "export", ReferenceID: "job-3"})
		assert.Equal(t, "3.00", balanceOf(t, router, "acct-1"))

		w := do(t, router, http.MethodPost, fmt.Sprintf("/reservations/%d/cancel", res.EntryID), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, string(entity.StatusRefunded), decode[dto.EntryResponse](t, w).Status)
		assert.Equal(t, "6.00", balanceOf(t, router, "acct-1"))
	})

	t.Run("shape is priced by the calculator", func(t *testing.T) {
		res := reserve(dto.ReserveRequest{
			ServiceType: "web_extraction",
			Shape:       &dto.ShapeRequest{Pages: 10},
			ReferenceID: "job-4",
		})
		assert.Equal(t, "0.70", res.Amount)
		assert.Equal(t, "5.30", res.Balance)
	})

	t.Run("insufficient credits reports the shortfall", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/reservations",
			dto.ReserveRequest{Amount: "8", ServiceType: "export", ReferenceID: "job-5"})
		require.Equal(t, http.StatusPaymentRequired, w.Code)

		body := decode[dto.ErrorResponse](t, w)
		assert.Equal(t, errs.CodeInsufficientCredits, body.Code)
		assert.Equal(t, "8.00", body.Required)
		assert.Equal(t, "5.30", body.Available)
		assert.Equal(t, "2.70", body.Shortfall)
		assert.Equal(t, "5.30", balanceOf(t, router, "acct-1"))
	})

	t.Run("unknown service type", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/reservations",
			dto.ReserveRequest{Amount: "1", ServiceType: "mining", ReferenceID: "job-6"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errs.CodeInvalidServiceType, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("neither amount nor shape", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/reservations",
			dto.ReserveRequest{ServiceType: "export", ReferenceID: "job-7"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/reservations/9999/cancel", nil)
		assert.GreaterOrEqual(t, w.Code, 400)
		assert.Less(t, w.Code, 500)
	})

	t.Run("malformed entry id", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/reservations/abc/confirm", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// doUnsized sends a body whose length is unknown up front, as with chunked transfer encoding
func doUnsized(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, io.NopCloser(strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOptionalBodiesWithUnknownLength(t *testing.T) {
	router := newRouter(t, nil)
	createFunded(t, router, "acct-1", "10")

	w := do(t, router, http.MethodPost, "/accounts/acct-1/reservations",
		dto.ReserveRequest{Amount: "2", ServiceType: "export", ReferenceID: "job-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[dto.ReserveResponse](t, w)

	w = doUnsized(router, fmt.Sprintf("/reservations/%d/confirm", res.EntryID), "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doUnsized(router, fmt.Sprintf("/reservations/%d/confirm", res.EntryID), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "-2.00", decode[dto.EntryResponse](t, w).Amount)
	assert.Equal(t, "8.00", balanceOf(t, router, "acct-1"))

	w = doUnsized(router, "/accounts/acct-1/trial", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "18.00", decode[dto.BalanceResponse](t, w).Balance)
}

func TestHistory(t *testing.T) {
	router := newRouter(t, nil)
	createFunded(t, router, "acct-1", "10")
	for i := 0; i < 3; i++ {
		w := do(t, router, http.MethodPost, "/accounts/acct-1/reservations",
			dto.ReserveRequest{Amount: "1", ServiceType: "export", ReferenceID: fmt.Sprintf("job-%d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, router, http.MethodGet, "/accounts/acct-1/history?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page := decode[dto.HistoryResponse](t, w)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Entries, 2)

	t.Run("bad limit", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/accounts/acct-1/history?limit=-1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPricingQuote(t *testing.T) {
	router := newRouter(t, nil)

	w := do(t, router, http.MethodPost, "/pricing/quote", dto.QuoteRequest{
		ServiceType: "web_extraction",
		Shape:       dto.ShapeRequest{Pages: 20},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, dto.QuoteResponse{ServiceType: "web_extraction", Cost: "0.90"}, decode[dto.QuoteResponse](t, w))

	t.Run("default rule", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/pricing/quote", dto.QuoteRequest{ServiceType: "export"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1.00", decode[dto.QuoteResponse](t, w).Cost)
	})

	t.Run("negative quantity", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/pricing/quote", dto.QuoteRequest{
			ServiceType: "web_extraction",
			Shape:       dto.ShapeRequest{Pages: -1},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdmin(t *testing.T) {
	router := newRouter(t, nil)
	createFunded(t, router, "acct-1", "5")

	w := do(t, router, http.MethodPost, "/admin/accounts/acct-1/adjustments", dto.AdjustmentRequest{
		Delta:       "-1.25",
		Description: "Goodwill reversal",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "-1.25", decode[dto.EntryResponse](t, w).Amount)

	w = do(t, router, http.MethodGet, "/admin/accounts/acct-1/audit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	report := decode[dto.AuditResponse](t, w)
	assert.True(t, report.Consistent)
	assert.Equal(t, "3.75", report.Balance)
	assert.Equal(t, "3.75", report.LedgerSum)
	assert.Equal(t, int64(2), report.EntryCount)

	t.Run("adjustment below zero", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/admin/accounts/acct-1/adjustments", dto.AdjustmentRequest{
			Delta:       "-10",
			Description: "Too much",
		})
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})

	t.Run("description is required", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/admin/accounts/acct-1/adjustments", dto.AdjustmentRequest{Delta: "1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		router := newRouter(t, map[string]handler.Pinger{
			"database": pingFunc(func(context.Context) error { return nil }),
		})

		w := do(t, router, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("dependency down", func(t *testing.T) {
		router := newRouter(t, map[string]handler.Pinger{
			"database": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		})

		w := do(t, router, http.MethodGet, "/health/ready", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"database": "ok", "redis": "unavailable"}, body.Checks)
	})

	t.Run("live", func(t *testing.T) {
		router := newRouter(t, nil)
		assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health/live", nil).Code)
	})
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
}
