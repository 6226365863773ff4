package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{Version: s.version})
}

// handleEstimate handles POST /v1/estimate
func (s *Server) handleEstimate(c *gin.Context) {
	var in types.EstimationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.writeError(c, errors.Parsing("malformed request body", err))
		return
	}

	detail, err := s.engine.EstimateVolumeDetailed(in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, EstimateResponse{
		RequestID: c.GetString(requestIDKey),
		Volume:    detail.Volume,
		Detail:    detail,
	})
}

// handleQuote handles POST /v1/quote. Rules and constants come from the
// same snapshot so the quote is priced against one configuration version.
func (s *Server) handleQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Parsing("malformed request body", err))
		return
	}

	st, ok := types.ParseServiceType(req.ServiceType)
	if !ok {
		s.writeError(c, errors.InvalidInput("service_type", "service_type must be one of MOVING, CLEANING, DELIVERY, PACKING (got %q)", req.ServiceType))
		return
	}
	pctx, err := req.Context.PricingContext(s.now())
	if err != nil {
		s.writeError(c, err)
		return
	}

	snap, err := s.gateway.Snapshot(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	constants, ok := snap.Constants[st]
	if !ok {
		s.writeError(c, errors.ConfigurationUnavailable("no base constants configured for "+st.String(), nil))
		return
	}

	q, err := s.engine.ComputeQuote(req.Input, snap.RulesFor(st), st, pctx, constants)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuoteResponse{
		RequestID:    c.GetString(requestIDKey),
		Quote:        q,
		RulesVersion: snap.Version,
	})
}

// handleRules handles GET /v1/rules/:service
func (s *Server) handleRules(c *gin.Context) {
	st, ok := types.ParseServiceType(c.Param("service"))
	if !ok {
		s.writeError(c, errors.InvalidInput("service", "unknown service type %q", c.Param("service")))
		return
	}
	rs, err := s.gateway.GetActiveRules(c.Request.Context(), st)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RulesResponse{ServiceType: st, Rules: rs})
}

// handleInvalidate handles POST /v1/rules/invalidate
func (s *Server) handleInvalidate(c *gin.Context) {
	if err := s.gateway.Invalidate(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, InvalidateResponse{Status: "invalidated"})
}

func (s *Server) writeError(c *gin.Context, err error) {
	resp := ErrorResponse{
		RequestID: c.GetString(requestIDKey),
		Code:      string(errors.TypeInternal),
		Message:   "internal error",
	}
	status := http.StatusInternalServerError

	if e, ok := errors.As(err); ok {
		resp.Code = string(e.Type)
		resp.Message = e.Message
		resp.Field = e.Field
		switch e.Type {
		case errors.TypeInvalidInput, errors.TypeParsing:
			status = http.StatusBadRequest
		case errors.TypeNotFound:
			status = http.StatusNotFound
		case errors.TypeConfigUnavailable:
			status = http.StatusServiceUnavailable
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("code", resp.Code),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}
