package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
	"quote-engine/internal/logging"
)

// DefaultTTL is the snapshot lifetime when none is configured
const DefaultTTL = 5 * time.Minute

// Source loads a full configuration snapshot from a backend
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Invalidator is implemented by sources that hold a shared cache
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Gateway is what the pricing path consumes
type Gateway interface {
	GetActiveRules(ctx context.Context, st types.ServiceType) ([]rules.Rule, error)
	GetBaseConstants(ctx context.Context, st types.ServiceType) (types.BaseConstants, error)
}

// CachedGateway keeps the last snapshot in memory and reloads it lazily
// once it is older than the TTL. A failed reload is never masked by the
// previous snapshot.
type CachedGateway struct {
	source Source
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
	loadedAt time.Time

	// bumped by Invalidate; a load started under an older generation is
	// returned to its caller but not cached
	generation uint64

	// serialises reloads so a burst of expired reads hits the source once
	refresh sync.Mutex
}

// New creates a cached gateway. A non-positive ttl uses DefaultTTL.
func New(source Source, ttl time.Duration, logger *zap.Logger) *CachedGateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedGateway{
		source: source,
		ttl:    ttl,
		logger: logging.Component(logger, "gateway"),
		now:    time.Now,
	}
}

// Snapshot returns the current snapshot, loading it if missing or expired
func (g *CachedGateway) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := g.fresh(); s != nil {
		return s, nil
	}

	g.refresh.Lock()
	defer g.refresh.Unlock()

	// another caller may have reloaded while we waited
	if s := g.fresh(); s != nil {
		return s, nil
	}

	g.mu.Lock()
	g.snapshot = nil
	gen := g.generation
	g.mu.Unlock()

	started := g.now()
	s, err := g.source.Load(ctx)
	if err != nil {
		g.logger.Error("configuration load failed", zap.Error(err))
		return nil, errors.ConfigurationUnavailable("pricing configuration could not be loaded", err)
	}
	if s == nil {
		return nil, errors.ConfigurationUnavailable("pricing configuration source returned no snapshot", nil)
	}

	g.mu.Lock()
	stale := g.generation != gen
	if !stale {
		g.snapshot = s
		g.loadedAt = g.now()
	}
	g.mu.Unlock()

	if stale {
		g.logger.Info("configuration invalidated during load, not caching",
			zap.String("version", s.Version))
		return s, nil
	}

	g.logger.Info("configuration loaded",
		zap.String("version", s.Version),
		zap.Int("rules", len(s.Rules)),
		zap.Int("rejected", len(s.Rejected)),
		zap.Int("services", len(s.Constants)),
		zap.Duration("took", g.now().Sub(started)))
	return s, nil
}

func (g *CachedGateway) fresh() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.snapshot == nil || g.now().Sub(g.loadedAt) >= g.ttl {
		return nil
	}
	return g.snapshot
}

// GetActiveRules returns a copy of the active rules for a service type
func (g *CachedGateway) GetActiveRules(ctx context.Context, st types.ServiceType) ([]rules.Rule, error) {
	if !st.IsValid() {
		return nil, errors.InvalidInput("serviceType", "unknown service type %q", st)
	}
	s, err := g.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.RulesFor(st), nil
}

// GetBaseConstants returns the base-price coefficients for a service type
func (g *CachedGateway) GetBaseConstants(ctx context.Context, st types.ServiceType) (types.BaseConstants, error) {
	if !st.IsValid() {
		return types.BaseConstants{}, errors.InvalidInput("serviceType", "unknown service type %q", st)
	}
	s, err := g.Snapshot(ctx)
	if err != nil {
		return types.BaseConstants{}, err
	}
	c, ok := s.Constants[st]
	if !ok {
		return types.BaseConstants{}, errors.ConfigurationUnavailable("no base constants configured for "+st.String(), nil)
	}
	return c, nil
}

// Invalidate drops the cached snapshot so the next read reloads it. Shared
// caches behind the source are invalidated as well.
func (g *CachedGateway) Invalidate(ctx context.Context) error {
	g.mu.Lock()
	g.generation++
	g.snapshot = nil
	g.mu.Unlock()

	if inv, ok := g.source.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			g.logger.Error("shared cache invalidation failed", zap.Error(err))
			return errors.ConfigurationUnavailable("shared configuration cache could not be invalidated", err)
		}
	}
	g.logger.Info("configuration invalidated")
	return nil
}

// StaticSource serves a fixed set of rules and constants
type StaticSource struct {
	Rules     []rules.Rule
	Constants map[types.ServiceType]types.BaseConstants
	Logger    *zap.Logger
}

// Load validates and returns the fixed configuration
func (s StaticSource) Load(ctx context.Context) (*Snapshot, error) {
	return NewSnapshot(s.Rules, s.Constants, time.Now().UTC(), s.Logger)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (*Snapshot, error)

// Load calls f
func (f SourceFunc) Load(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}
