package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carepoint/portal-api/internal/handler/health"
	"github.com/carepoint/portal-api/internal/middleware"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/pkg/logger"
)

// Handler registers a route block on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Config carries the router's tunable surface.
type Config struct {
	Timeout          time.Duration
	CORS             middleware.CORSConfig
	RateLimitEnabled bool
	RateLimit        middleware.RateLimitConfig
	MaxUploadBytes   int64
	MetricsPrefix    string
}

// Handlers groups the route blocks by the audience they serve.
type Handlers struct {
	Health  *health.Handler
	Auth    Handler
	Profile Handler
	Patient Handler
	Doctor  Handler
	Admin   Handler
	Files   Handler
	WS      Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(log *logger.Logger, auth *middleware.AuthMiddleware, handlers Handlers, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)
	registerValidations()
	engine := gin.New()

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 10 << 20
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  initRouterMetrics(config.MetricsPrefix),
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxUploadBytes = config.MaxUploadBytes
	sizeLimit.UploadPrefixes = []string{"/api/v1/files", "/api/v1/me/avatar"}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.ErrorHandler(log),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORS),
		middleware.Compress(middleware.DefaultCompressConfig()),
		middleware.SizeLimit(sizeLimit),
		middleware.Timeout(config.Timeout),
	)

	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}

	return r
}

// Setup registers every route. Role gates wrap whole groups so a
// forgotten per-route check cannot open a hole.
func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Public routes.
	r.handlers.Auth.RegisterRoutes(api)

	// Everything below requires a session.
	protected := api.Group("", r.auth.Authenticate())
	r.handlers.Profile.RegisterRoutes(protected)
	r.handlers.Files.RegisterRoutes(protected)
	// Topic-level authorization happens inside the websocket layer, so
	// the connection itself is open to any role.
	r.handlers.WS.RegisterRoutes(protected)

	patientArea := protected.Group("", r.auth.RequireRole(model.RolePatient))
	r.handlers.Patient.RegisterRoutes(patientArea)

	doctorArea := protected.Group("", r.auth.RequireRole(model.RoleDoctor))
	r.handlers.Doctor.RegisterRoutes(doctorArea)

	adminArea := protected.Group("", r.auth.RequireRole(model.RoleAdmin))
	r.handlers.Admin.RegisterRoutes(adminArea)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	if prefix == "" {
		prefix = "portal"
	}
	return &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

// MustRegisterMetrics attaches the router's collectors to reg. Kept
// separate from construction so tests can build routers without
// touching the global registry.
func (r *Router) MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(r.metrics.requestDuration, r.metrics.requestTotal, r.metrics.errorTotal)
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
