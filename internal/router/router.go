package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/office-portal/internal/middleware"
	"github.com/jwalitptl/office-portal/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler exposes routes that need no bearer token.
type PublicHandler interface {
	RegisterPublicRoutes(*gin.RouterGroup)
}

// Handlers groups every endpoint the API serves.
type Handlers struct {
	Health       Handler
	Auth         AuthHandler
	Users        Handler
	RBAC         Handler
	Offices      OfficeHandler
	Requests     Handler
	Appointments Handler
}

type AuthHandler interface {
	Handler
	RegisterProtectedRoutes(*gin.RouterGroup)
}

type OfficeHandler interface {
	Handler
	PublicHandler
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

type RouterConfig struct {
	ServiceName   string
	RateLimit     rate.Limit
	RateBurst     int
	MetricsPrefix string
	Registerer    prometheus.Registerer
	Debug         bool
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, log *logger.Logger, config RouterConfig) *Router {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.RegisterValidation()

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		otelgin.Middleware(config.ServiceName),
		middleware.Logger(log),
		middleware.ErrorLogger(log),
		r.metricsMiddleware(),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	r.setup()
	return r
}

func (r *Router) setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Health.RegisterRoutes(api)

	// Public routes
	r.handlers.Auth.RegisterRoutes(api)
	r.handlers.Offices.RegisterPublicRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.handlers.Auth.RegisterProtectedRoutes(protected)
	r.handlers.Users.RegisterRoutes(protected)
	r.handlers.RBAC.RegisterRoutes(protected)
	r.handlers.Offices.RegisterRoutes(protected)
	r.handlers.Requests.RegisterRoutes(protected)
	r.handlers.Appointments.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	if prefix == "" {
		prefix = "http"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &routerMetrics{
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case c.Writer.Status() >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case c.Writer.Status() >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
