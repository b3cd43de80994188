package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PratikDhanave/driving-alerts/internal/handlers"
	"github.com/PratikDhanave/driving-alerts/internal/store"
)

// Options configures the router.
type Options struct {
	// Now stamps events that arrive without a timestamp. Default: time.Now
	Now func() time.Time
}

// NewRouter wires the public endpoints.
// Operational: /health, /ready, /metrics
// Domain: POST /event, GET /alerts/:alertId
func NewRouter(st store.Store, trigger handlers.EvaluationTrigger, opts Options) *gin.Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterEventRoutes(r, st, trigger, opts.Now)
	handlers.RegisterAlertRoutes(r, st)

	return r
}
