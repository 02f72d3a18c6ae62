package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/middleware"
)

// HealthServer is the HTTP surface this repository exposes outside the
// game protocol itself: liveness and Prometheus metrics. No endpoint
// here identifies a player or touches world state — HTTP authentication
// and a player-facing REST API are out of scope.
type HealthServer struct {
	router       *gin.Engine
	port         string
	metrics      *ServerMetrics
	sessionCount func() int
}

// NewHealthServer wires request logging, tracing, and Prometheus
// middleware onto a fresh router the same way the teacher's REST API
// did, minus every route that required a player identity.
// sessionCount lets the handler report live session count without
// internal/api depending on internal/server.
func NewHealthServer(port string, sessionCount func() int) *HealthServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(otelgin.Middleware("mmo_server"))

	promMw := middleware.NewPrometheusMiddleware("mmo_server_http")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	hs := &HealthServer{router: router, port: port, metrics: NewServerMetrics(), sessionCount: sessionCount}
	router.GET("/healthz", hs.handleHealthz)
	return hs
}

func (hs *HealthServer) handleHealthz(c *gin.Context) {
	memoryMB, _ := hs.metrics.GetMemoryUsage()
	cpuPercent, _ := hs.metrics.GetCPUUsage()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      hs.metrics.GetUptime(),
		"memory_mb":   memoryMB,
		"cpu_percent": cpuPercent,
		"sessions":    hs.sessionCount(),
	})
}

// Start runs the router in its own goroutine.
func (hs *HealthServer) Start() {
	go func() {
		logging.Info("health/metrics HTTP surface listening on %s", hs.port)
		if err := hs.router.Run(hs.port); err != nil {
			logging.Error("health server stopped: %v", err)
		}
	}()
}
