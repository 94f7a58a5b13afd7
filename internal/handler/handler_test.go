package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"adgrid/internal/client"
	"adgrid/internal/config"
	"adgrid/internal/events"
	"adgrid/internal/middleware"
	"adgrid/internal/model"
	"adgrid/internal/repository"
	"adgrid/internal/service"
	"adgrid/internal/storage"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test_webhook_secret"

type stubRazorpay struct {
	mu       sync.Mutex
	requests []*client.CreateOrderRequest
}

func (s *stubRazorpay) CreateOrder(_ context.Context, req *client.CreateOrderRequest) (*model.RazorpayOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return &model.RazorpayOrder{
		ID:       fmt.Sprintf("order_%d", len(s.requests)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

type testApp struct {
	db       *gorm.DB
	echo     *echo.Echo
	razorpay *stubRazorpay
	tracker  service.PurchaseTracker
	hub      *events.Hub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := client.InitDBClient("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rzp := &stubRazorpay{}
	hub := events.NewHub(8)
	tracker := service.NewPurchaseTracker(db, repository.NewPurchaseRepository(db))

	orders, err := service.NewOrderService(&config.Razorpay{KeyID: "rzp_test", KeySecret: "secret", Currency: "INR"}, rzp, tracker)
	require.NoError(t, err)
	payments := service.NewPaymentService(testSecret, testSecret, tracker, repository.NewWebhookEventRepository(db), hub)
	ads := service.NewAdService(repository.NewAdRepository(db), tracker, hub)

	payment := NewPaymentHandler(orders, payments, false)
	ad := NewAdHandler(ads, tracker, storage.NewLocalImageStore(t.TempDir(), "http://localhost:8080"))
	cfg := NewConfigHandler("rzp_public", "INR", 83)

	auth := middleware.AuthConfig{AllowDevHeader: true}
	optional := middleware.AuthMiddleware(auth, false)
	required := middleware.AuthMiddleware(auth, true)

	e := echo.New()
	e.GET("/api/config", cfg.ClientConfig)
	e.GET("/api/boxes", ad.Grid)
	e.POST("/api/payment", payment.CreateOrder, optional)
	e.POST("/api/verify-payment", payment.VerifyPayment, optional)
	e.POST("/api/razorpay/webhook", payment.RazorpayWebhook)
	e.GET("/api/purchases", ad.PurchasedBoxes, required)
	e.GET("/api/purchases/:box", ad.PurchaseStatus, required)
	e.GET("/api/ads", ad.ListAds, required)
	e.POST("/api/ads", ad.SubmitAd, required)
	e.DELETE("/api/ads/:id", ad.DeleteAd, required)
	e.POST("/api/ads/images", ad.UploadImage, required)

	return &testApp{db: db, echo: e, razorpay: rzp, tracker: tracker, hub: hub}
}

func (a *testApp) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set(middleware.DevUserHeader, user)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doWebhook(t *testing.T, body, sig string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/razorpay/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Razorpay-Signature", sig)
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func intPtr(i int) *int { return &i }
