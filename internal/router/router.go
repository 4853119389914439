package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/password-policy/internal/handler"
	"github.com/jwalitptl/password-policy/internal/middleware"
	apperrors "github.com/jwalitptl/password-policy/pkg/errors"
	"github.com/jwalitptl/password-policy/pkg/metrics"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// AdminHandler also exposes routes that require the admin role.
type AdminHandler interface {
	Handler
	RegisterAdminRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	policyH AdminHandler
	h       *handler.Handler
	config  RouterConfig
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RateClientTTL    time.Duration
	CORSConfig       middleware.CORSConfig
	SizeLimit        middleware.SizeLimitConfig
	Security         middleware.SecurityConfig
	// Metrics may be nil, which disables request metrics.
	Metrics     *metrics.Metrics
	MetricsPath string
	AdminRole   string
}

// NewRouter wires the middleware chain. auth may be nil, in which case the
// admin routes are not mounted.
func NewRouter(
	auth *middleware.AuthMiddleware,
	policyH AdminHandler,
	h *handler.Handler,
	config RouterConfig,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		policyH: policyH,
		h:       h,
		config:  config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	if config.Metrics != nil {
		engine.Use(middleware.Metrics(config.Metrics))
	}

	engine.Use(
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      config.RateLimit,
			Burst:     config.RateBurst,
			ClientTTL: config.RateClientTTL,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound("route", nil))
	})

	return r
}

func (r *Router) Setup() {
	if r.config.MetricsPath != "" {
		r.engine.GET(r.config.MetricsPath, r.h.MetricsHandler())
	}

	api := r.engine.Group("/api/v1")

	// Health check endpoints
	r.h.RegisterRoutes(api)

	// Public routes
	r.policyH.RegisterRoutes(api)

	// Admin routes
	if r.auth != nil {
		admin := api.Group("")
		admin.Use(
			r.auth.Authenticate(),
			r.auth.RequireRole(r.config.AdminRole),
		)
		r.policyH.RegisterAdminRoutes(admin)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
