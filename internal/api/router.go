package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/medistore/medistore-api/docs"
	"github.com/medistore/medistore-api/internal/api/handler"
	"github.com/medistore/medistore-api/internal/api/middleware"
	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/pkg/logger"
)

// Dependencies are the collaborators the HTTP layer needs.
type Dependencies struct {
	Auth      ports.AuthService
	Medicines ports.MedicineService
	Orders    ports.OrderService
	Reviews   ports.ReviewService

	// Readiness checks keyed by dependency name (postgres, mongodb, redis, ...).
	Readiness map[string]handler.PingFunc

	JWTSecret string
	Logger    zerolog.Logger

	// Registry receives the HTTP request metrics. Nil means the default
	// Prometheus registry, which also holds the domain metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "medistore",
		Registerer: registerer,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	medicineHandler := handler.NewMedicineHandler(deps.Medicines)
	orderHandler := handler.NewOrderHandler(deps.Orders)
	reviewHandler := handler.NewReviewHandler(deps.Reviews)
	auth := middleware.Auth(deps.JWTSecret)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Health checks, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1", auth)

	sellers := middleware.RBAC(domain.RoleSeller, domain.RoleAdmin)
	buyers := middleware.RBAC(domain.RoleCustomer, domain.RoleAdmin)
	admins := middleware.RBAC(domain.RoleAdmin)

	// --- Catalog ---
	v1.GET("/medicines", medicineHandler.List)
	v1.POST("/medicines", medicineHandler.Create, sellers)
	v1.GET("/medicines/:id", medicineHandler.Get)
	v1.PATCH("/medicines/:id", medicineHandler.Update, sellers)
	v1.GET("/medicines/:id/reviews", reviewHandler.ListForMedicine)

	// --- Reviews ---
	reviews := v1.Group("/reviews")
	reviews.GET("", reviewHandler.List)
	reviews.GET("/me", reviewHandler.ListMine)
	reviews.POST("", reviewHandler.Create, buyers)
	reviews.PATCH("/:id", reviewHandler.Update, buyers)
	reviews.DELETE("/:id", reviewHandler.Delete, buyers)

	// --- Orders ---
	orders := v1.Group("/orders")
	orders.POST("/checkout", orderHandler.Checkout, buyers)
	orders.GET("/me", orderHandler.ListMine)
	orders.GET("", orderHandler.ListAll, admins)
	orders.GET("/seller/me", orderHandler.ListSeller, sellers)
	orders.PATCH("/seller/:id/status", orderHandler.UpdateStatusBySeller, sellers)
	orders.GET("/:id", orderHandler.Get)
	orders.PUT("/:id/items", orderHandler.UpdateItems, buyers)
	orders.PATCH("/:id/cancel", orderHandler.Cancel, buyers)
	orders.PATCH("/:id/status", orderHandler.UpdateStatus, admins)

	return e
}

// requestLogger writes one structured access log line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			l := logger.WithTrace(c.Request().Context(), log)
			ev := l.Info()
			if v.Status >= 500 {
				ev = l.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
