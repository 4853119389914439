package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves health and metrics endpoints.
type Handler struct {
	gatherer     prometheus.Gatherer
	dependencies map[string]Pinger
	timeout      time.Duration
}

// NewHandler creates the health and metrics handler. gatherer may be nil, in
// which case the default registry is served.
func NewHandler(gatherer prometheus.Gatherer, dependencies map[string]Pinger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		gatherer:     gatherer,
		dependencies: dependencies,
		timeout:      2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck pings every dependency and reports DOWN if any fails.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.dependencies))
	status := http.StatusOK
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "DOWN"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "UP"
	}

	state := "UP"
	if status != http.StatusOK {
		state = "DOWN"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}

func (h *Handler) MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
