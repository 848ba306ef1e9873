// Package server exposes the HTTP API: job submission and status, live
// event streams, result reports, and operational endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/danwin47-sys/ocrflow/metrics"
	"github.com/danwin47-sys/ocrflow/observability"
	"github.com/danwin47-sys/ocrflow/pipeline"
	"github.com/danwin47-sys/ocrflow/ratelimit"
	"github.com/danwin47-sys/ocrflow/report"
)

// DefaultMaxBodyBytes bounds submission payloads.
const DefaultMaxBodyBytes = 20 << 20

// Options configures the server.
type Options struct {
	Pipeline *pipeline.Pipeline
	// Limiter is the per-client admission limiter. Nil selects an
	// in-memory sliding window with default limits.
	Limiter ratelimit.Limiter
	// GlobalRate caps total submissions per second across all clients, a
	// backstop ahead of per-client limiting. Zero disables it.
	GlobalRate  rate.Limit
	GlobalBurst int
	// MaxBodyBytes bounds request bodies on the submit route. Zero
	// selects DefaultMaxBodyBytes.
	MaxBodyBytes int64
	Logger       observability.Logger
}

// Server holds the handlers' shared state.
type Server struct {
	pipeline *pipeline.Pipeline
	limiter  ratelimit.Limiter
	global   *rate.Limiter
	renderer *report.Renderer
	upgrader websocket.Upgrader
	maxBody  int64
	log      observability.Logger
}

// New builds a Server. Options.Pipeline must be set.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewSlidingWindow(0, 0)
	}
	var global *rate.Limiter
	if opts.GlobalRate > 0 {
		burst := opts.GlobalBurst
		if burst <= 0 {
			burst = int(opts.GlobalRate)
			if burst < 1 {
				burst = 1
			}
		}
		global = rate.NewLimiter(opts.GlobalRate, burst)
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Server{
		pipeline: opts.Pipeline,
		limiter:  opts.Limiter,
		global:   global,
		renderer: report.NewRenderer(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		maxBody: maxBody,
		log:     opts.Logger,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.requestLog(), gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs", s.submitBackstop(), s.submitJob)
		v1.GET("/jobs/:id", s.getJob)
		v1.DELETE("/jobs/:id", s.deleteJob)
		v1.GET("/jobs/:id/events", s.jobEvents)
		v1.GET("/jobs/:id/ws", s.jobSocket)
		v1.GET("/jobs/:id/report", s.jobReport)
		v1.GET("/stats", s.stats)
	}

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// requestLog reports each request at debug level.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("took", time.Since(start)))
	}
}

// submitBackstop sheds submissions when the whole service is over its global
// budget, before any per-client accounting.
func (s *Server) submitBackstop() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.global != nil && !s.global.Allow() {
			metrics.RateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "service is at capacity, retry later",
			})
			return
		}
		c.Next()
	}
}

// clientID identifies the submitter for rate limiting: the API key when
// present, the peer address otherwise.
func (s *Server) clientID(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.ClientIP()
}
