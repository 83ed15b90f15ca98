package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cleanly/booking-api/internal/middleware"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

// Handler mounts its routes under rg, guarded by mw.
type Handler interface {
	RegisterRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc)
}

type HealthHandler interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

type Handlers struct {
	Health   HealthHandler
	Bookings Handler
	Jobs     Handler
	Provider Handler
	Admin    Handler
	Webhooks Handler
	// Metrics serves the prometheus registry; nil disables the endpoint.
	Metrics gin.HandlerFunc
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimiter      middleware.RateLimiterConfig
	MetricsPath      string
	MaxBodySize      int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	handlers Handlers,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	engine := gin.New()

	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.ErrorHandler(log),
		middleware.Metrics(m),
	)

	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimiter, m).RateLimit())
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	if r.handlers.Metrics != nil {
		r.engine.GET(r.config.MetricsPath, r.handlers.Metrics)
	}

	api := r.engine.Group("/api/v1")
	api.Use(middleware.BodyLimit(r.config.MaxBodySize))

	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Webhooks.RegisterRoutes(api)

	authn := r.auth.Authenticate()
	r.handlers.Bookings.RegisterRoutes(api, authn, r.auth.RequireRoles(model.RoleCustomer))
	r.handlers.Jobs.RegisterRoutes(api, authn, r.auth.RequireRoles(model.RoleProvider, model.RoleCompany))
	r.handlers.Provider.RegisterRoutes(api, authn, r.auth.RequireRoles(model.RoleProvider, model.RoleCompany))
	r.handlers.Admin.RegisterRoutes(api, authn, r.auth.RequireRoles(model.RolePlatformAdmin))
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
