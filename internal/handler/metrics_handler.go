package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/database"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/response"
)

const welcomePage = `<!DOCTYPE html>
<html>
  <head><title>Student Management API</title></head>
  <body style="font-family: sans-serif">
    <h1 style="color: darkblue">Welcome to the Student Management API</h1>
    <p>This API allows you to manage student records efficiently.</p>
    <ul>
      <li>API Base: <code>{{PREFIX}}</code></li>
      <li>Students Endpoint: <code>{{PREFIX}}/students</code></li>
    </ul>
  </body>
</html>`

// DatabaseProbe reports connectivity of the shared pool.
type DatabaseProbe interface {
	TestConnection(ctx context.Context) bool
	State() database.State
	Dialect() database.Dialect
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics      *service.MetricsService
	db           DatabaseProbe
	apiPrefix    string
	probeTimeout time.Duration
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, db DatabaseProbe, apiPrefix string) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, apiPrefix: apiPrefix, probeTimeout: 3 * time.Second}
}

// Welcome serves a small HTML landing page.
func (h *MetricsHandler) Welcome(c *gin.Context) {
	page := []byte(strings.ReplaceAll(welcomePage, "{{PREFIX}}", h.apiPrefix))
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *MetricsHandler) Ready(c *gin.Context) {
	if !h.probe(c) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": string(h.db.State())})
}

// TestDB godoc
// @Summary Database connectivity check
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /test-db [get]
func (h *MetricsHandler) TestDB(c *gin.Context) {
	if !h.probe(c) {
		response.Error(c, appErrors.Describe(appErrors.ErrServiceUnavailable, "Database connection failed", "The connection pool could not run a test query"))
		return
	}
	response.OK(c, "Database connection successful", "Test query succeeded", gin.H{
		"driver":    h.db.Dialect().Name(),
		"state":     string(h.db.State()),
		"checkedAt": time.Now().UTC(),
	})
}

func (h *MetricsHandler) probe(c *gin.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.probeTimeout)
	defer cancel()
	return h.db.TestConnection(ctx)
}
