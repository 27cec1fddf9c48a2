package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	handlers "github.com/wekeepgrowing/settlement-service/internal/adapter/handler/http"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/settlement-service/internal/middleware/auth"
	"github.com/wekeepgrowing/settlement-service/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Handlers are the route targets served by Server.
type Handlers struct {
	Payment *handlers.PaymentHandler
	Webhook *handlers.WebhookHandler
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	handlers Handlers
	gatherer prometheus.Gatherer
}

func NewServer(cfg *config.Config, log *zap.Logger, h Handlers, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	logger.WithEchoLogger(e, log)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(cfg.Service.Name)))
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, cfg.Webhook.SignatureHeader},
	}))

	return &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		handlers: h,
		gatherer: gatherer,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	metricsPath := s.config.Server.HTTP.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	s.echo.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Gateway notifications authenticate with their signature
	s.echo.POST("/webhook", s.handlers.Webhook.Handle)
	s.echo.POST("/api/v1/payments/webhook", s.handlers.Webhook.Handle)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			metricsPath,
			"/webhook",
			"/api/v1/payments/webhook",
		},
	}

	payments := s.echo.Group("/api/v1/payments", auth.JWTMiddleware(jwtConfig))
	payments.POST("/pre-authorize", s.handlers.Payment.PreAuthorize)
	payments.POST("/capture/:paymentId", s.handlers.Payment.Capture)
	payments.POST("/manage/:paymentId", s.handlers.Payment.Manage)
	payments.GET("/history", s.handlers.Payment.History)
	payments.POST("/history", s.handlers.Payment.History)
	payments.GET("/:id", s.handlers.Payment.GetPayment)
	payments.GET("/:id/events", s.handlers.Payment.GetEvents)
	payments.GET("/:id/transfers", s.handlers.Payment.GetTransfers)
	payments.POST("/:id/payout/retry", s.handlers.Payment.RetryPayout)
}
