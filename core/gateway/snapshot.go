// Package gateway is the configuration gateway. It serves point-in-time
// snapshots of the pricing rules and base constants and never lets a
// backend failure leak as anything but CONFIGURATION_UNAVAILABLE.
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

// Rejection is a rule dropped at ingestion
type Rejection struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// Snapshot is an immutable view of the configuration at one point in time.
// Callers must not modify it.
type Snapshot struct {
	Rules     []rules.Rule                              `json:"rules"`
	Constants map[types.ServiceType]types.BaseConstants `json:"constants"`
	Rejected  []Rejection                               `json:"rejected,omitempty"`
	LoadedAt  time.Time                                 `json:"loaded_at"`

	// Version is a content hash of Rules and Constants
	Version string `json:"version"`
}

// NewSnapshot validates raw rules and constants and seals them into a
// snapshot. Invalid rules are dropped and reported in Rejected, after any
// decode errors the source already hit; invalid constants fail the whole
// load.
func NewSnapshot(raw []rules.Rule, constants map[types.ServiceType]types.BaseConstants, loadedAt time.Time, logger *zap.Logger, decodeErrs ...error) (*Snapshot, error) {
	for st, c := range constants {
		if !st.IsValid() {
			return nil, errors.Newf(errors.TypeConfig, "base constants for unknown service type %q", st)
		}
		if field := c.Negative(); field != "" {
			return nil, errors.Newf(errors.TypeConfig, "base constant %s for %s must not be negative", field, st)
		}
	}

	valid, errs := rules.ValidateSet(raw)
	s := &Snapshot{
		Rules:     valid,
		Constants: constants,
		LoadedAt:  loadedAt,
	}
	if s.Constants == nil {
		s.Constants = map[types.ServiceType]types.BaseConstants{}
	}
	all := make([]error, 0, len(decodeErrs)+len(errs))
	all = append(all, decodeErrs...)
	all = append(all, errs...)
	for _, err := range all {
		rej := Rejection{Reason: err.Error()}
		if e, ok := errors.As(err); ok {
			if id, ok := e.Context["rule_id"].(string); ok {
				rej.RuleID = id
			}
		}
		s.Rejected = append(s.Rejected, rej)
		if logger != nil {
			logger.Warn("rule rejected at ingestion",
				zap.String("rule_id", rej.RuleID),
				zap.String("reason", rej.Reason))
		}
	}

	version, err := contentHash(s.Rules, s.Constants)
	if err != nil {
		return nil, errors.Internal("failed to hash configuration snapshot", err)
	}
	s.Version = version
	return s, nil
}

// RulesFor returns a copy of the active rules of one service type
func (s *Snapshot) RulesFor(st types.ServiceType) []rules.Rule {
	out := make([]rules.Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		if r.IsActive && r.ServiceType == st {
			out = append(out, r)
		}
	}
	return out
}

// contentHash is stable across loads: encoding/json sorts map keys
func contentHash(rs []rules.Rule, constants map[types.ServiceType]types.BaseConstants) (string, error) {
	body, err := json.Marshal(struct {
		Rules     []rules.Rule                              `json:"rules"`
		Constants map[types.ServiceType]types.BaseConstants `json:"constants"`
	}{rs, constants})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
