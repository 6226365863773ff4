// Package api - API types for quoting
// These types define the contract for the /v1 endpoints.
package api

import (
	"strings"
	"time"

	"quote-engine/core/engine"
	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/core/volume"
	"quote-engine/internal/errors"
)

// EstimateResponse is the output of POST /v1/estimate
type EstimateResponse struct {
	RequestID string        `json:"request_id"`
	Volume    float64       `json:"volume"`
	Detail    volume.Detail `json:"detail"`
}

// QuoteRequest is the input to POST /v1/quote
type QuoteRequest struct {
	Input       types.EstimationInput `json:"input"`
	ServiceType string                `json:"service_type"`
	Context     ContextRequest        `json:"context"`
}

// ContextRequest carries the job attributes. Date accepts YYYY-MM-DD or
// RFC 3339; empty means today (UTC).
type ContextRequest struct {
	Date          string   `json:"date,omitempty"`
	DistanceKm    float64  `json:"distance_km"`
	Workers       int      `json:"workers"`
	DurationHours float64  `json:"duration_hours,omitempty"`
	Options       []string `json:"options,omitempty"`
}

// PricingContext converts the request into the engine context
func (c ContextRequest) PricingContext(now time.Time) (types.PricingContext, error) {
	ctx := types.PricingContext{
		DistanceKm:    c.DistanceKm,
		Workers:       c.Workers,
		DurationHours: c.DurationHours,
		Options:       c.Options,
	}
	raw := strings.TrimSpace(c.Date)
	switch {
	case raw == "":
		y, m, d := now.UTC().Date()
		ctx.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	default:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, raw); err != nil {
				return ctx, errors.InvalidInput("context.date", "context.date must be YYYY-MM-DD or RFC 3339 (got %q)", raw)
			}
		}
		ctx.Date = t
	}
	return ctx, nil
}

// QuoteResponse is the output of POST /v1/quote
type QuoteResponse struct {
	RequestID    string       `json:"request_id"`
	Quote        engine.Quote `json:"quote"`
	RulesVersion string       `json:"rules_version"`
}

// RulesResponse is the output of GET /v1/rules/:service
type RulesResponse struct {
	ServiceType types.ServiceType `json:"service_type"`
	Rules       []rules.Rule      `json:"rules"`
}

// InvalidateResponse is the output of POST /v1/rules/invalidate
type InvalidateResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
}

// HealthResponse is the output of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the output of GET /version
type VersionResponse struct {
	Version string `json:"version"`
}
