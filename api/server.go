// Package api is the HTTP layer. It decodes requests, calls the engine and
// the configuration gateway, and encodes responses; it performs no pricing
// logic of its own.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quote-engine/core/engine"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/logging"
)

// ConfigGateway is the gateway surface the API needs
type ConfigGateway interface {
	Snapshot(ctx context.Context) (*gateway.Snapshot, error)
	GetActiveRules(ctx context.Context, st types.ServiceType) ([]rules.Rule, error)
	Invalidate(ctx context.Context) error
}

const requestIDKey = "request_id"

// Server is the API server
type Server struct {
	engine  *engine.Engine
	gateway ConfigGateway
	version string
	logger  *zap.Logger
	router  *gin.Engine
	now     func() time.Time
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine, gw ConfigGateway, version string, logger *zap.Logger) *Server {
	s := &Server{
		engine:  eng,
		gateway: gw,
		version: version,
		logger:  logging.Component(logger, "api"),
		router:  gin.New(),
		now:     time.Now,
	}
	s.router.Use(s.requestID(), s.accessLog(), gin.CustomRecovery(s.recover))
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/version", s.handleVersion)

	v1 := s.router.Group("/v1")
	v1.POST("/estimate", s.handleEstimate)
	v1.POST("/quote", s.handleQuote)
	v1.GET("/rules/:service", s.handleRules)
	v1.POST("/rules/invalidate", s.handleInvalidate)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) recover(c *gin.Context, recovered interface{}) {
	s.logger.Error("panic recovered",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Any("panic", recovered))
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		RequestID: c.GetString(requestIDKey),
		Code:      "INTERNAL_ERROR",
		Message:   "internal error",
	})
}
