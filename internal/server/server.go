package server

import (
	"context"
	"log/slog"
	"net/http"

	"adgrid/internal/config"
	"adgrid/internal/events"
	"adgrid/internal/handler"
	appmiddleware "adgrid/internal/middleware"
	"adgrid/internal/service"
	"adgrid/internal/storage"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Dependencies struct {
	OrderService    service.OrderService
	PaymentService  service.PaymentService
	AdService       service.AdService
	PurchaseTracker service.PurchaseTracker
	ImageStore      storage.ImageStore
	Hub             *events.Hub
	Registry        *prometheus.Registry
}

type Server struct {
	echo           *echo.Echo
	cfg            *config.Config
	auth           appmiddleware.AuthConfig
	registry       *prometheus.Registry
	paymentHandler *handler.PaymentHandler
	adHandler      *handler.AdHandler
	eventsHandler  *handler.EventsHandler
	configHandler  *handler.ConfigHandler
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request",
					slog.Group("http", attrs...), slog.String("error", v.Error.Error()))
				return nil
			}
			slog.InfoContext(c.Request().Context(), "request", slog.Group("http", attrs...))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.HTTP.AllowedOrigin},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, appmiddleware.DevUserHeader,
		},
	}))

	auth := appmiddleware.AuthConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowDevHeader: cfg.IsDevelopment() && cfg.Auth.JWTSecret == "",
	}

	s := &Server{
		echo:           e,
		cfg:            cfg,
		auth:           auth,
		registry:       deps.Registry,
		paymentHandler: handler.NewPaymentHandler(deps.OrderService, deps.PaymentService, cfg.IsDevelopment()),
		adHandler:      handler.NewAdHandler(deps.AdService, deps.PurchaseTracker, deps.ImageStore),
		eventsHandler:  handler.NewEventsHandler(deps.Hub),
		configHandler:  handler.NewConfigHandler(cfg.Razorpay.PublicKeyID, cfg.Razorpay.Currency, cfg.Grid.BoxPrice),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Static("/uploads", s.cfg.Storage.UploadDir)
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	api.GET("/config", s.configHandler.ClientConfig)
	api.GET("/boxes", s.adHandler.Grid)
	api.GET("/events", s.eventsHandler.Stream)

	// -------- payment --------
	optionalAuth := appmiddleware.AuthMiddleware(s.auth, false)
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(s.cfg.HTTP.RateLimitRPS)))
	api.POST("/payment", s.paymentHandler.CreateOrder, limiter, optionalAuth)
	api.POST("/verify-payment", s.paymentHandler.VerifyPayment, limiter, optionalAuth)

	// -------- razorpay webhooks --------
	api.POST("/razorpay/webhook", s.paymentHandler.RazorpayWebhook)

	// -------- authenticated --------
	requireAuth := appmiddleware.AuthMiddleware(s.auth, true)
	api.GET("/purchases", s.adHandler.PurchasedBoxes, requireAuth)
	api.GET("/purchases/:box", s.adHandler.PurchaseStatus, requireAuth)
	api.GET("/ads", s.adHandler.ListAds, requireAuth)
	api.POST("/ads", s.adHandler.SubmitAd, requireAuth)
	api.DELETE("/ads/:id", s.adHandler.DeleteAd, requireAuth)
	api.POST("/ads/images", s.adHandler.UploadImage, middleware.BodyLimit("6M"), requireAuth)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.eventsHandler.Close()
	return s.echo.Shutdown(ctx)
}
