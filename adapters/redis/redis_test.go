package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"quote-engine/core/condition"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/types"
)

type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return redis.NewStringResult("", f.readErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingSource struct {
	loads int
	src   gateway.StaticSource
}

func (c *countingSource) Load(ctx context.Context) (*gateway.Snapshot, error) {
	c.loads++
	return c.src.Load(ctx)
}

func backend() *countingSource {
	weekend := rules.Rule{
		ID: "weekend", Name: "weekend", Value: decimal.NewFromInt(10), PercentBased: true,
		Category: types.CategorySurcharge, ServiceType: types.ServiceMoving, IsActive: true,
		Condition: condition.New(condition.OnWeekdays(time.Saturday, time.Sunday)),
	}
	return &countingSource{src: gateway.StaticSource{
		Rules: []rules.Rule{weekend},
		Constants: map[types.ServiceType]types.BaseConstants{
			types.ServiceMoving: {PricePerM3: decimal.NewFromInt(35), AddOns: map[string]decimal.Decimal{"packing": decimal.NewFromInt(150)}},
		},
	}}
}

func TestSnapshotIsSharedThroughRedis(t *testing.T) {
	rdb := newFakeRedis()
	first := backend()
	second := backend()
	cfg := Config{TTL: time.Minute}

	a, err := NewSource(rdb, first, cfg, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rdb.ttls[DefaultKey] != time.Minute {
		t.Errorf("Expected snapshot to be stored with a 1m TTL, got %s", rdb.ttls[DefaultKey])
	}

	b, err := NewSource(rdb, second, cfg, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if second.loads != 0 {
		t.Errorf("Second instance should be served from redis, loaded the backend %d times", second.loads)
	}
	if a.Version != b.Version {
		t.Errorf("Expected identical versions, got %s and %s", a.Version, b.Version)
	}

	s := b.Rules[0].Condition
	ok, err := s.Evaluate(types.PricingContext{Date: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)})
	if err != nil || !ok {
		t.Errorf("Expected decoded condition to survive the round trip, got %v (%v)", ok, err)
	}
	if !b.Constants[types.ServiceMoving].AddOns["packing"].Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected add-ons to survive the round trip, got %v", b.Constants[types.ServiceMoving].AddOns)
	}
}

func TestInvalidateDeletesSharedSnapshot(t *testing.T) {
	rdb := newFakeRedis()
	src := backend()
	s := NewSource(rdb, src, Config{}, nil)

	s.Load(context.Background())
	if err := s.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok := rdb.data[DefaultKey]; ok {
		t.Error("Expected the shared snapshot to be deleted")
	}

	s.Load(context.Background())
	if src.loads != 2 {
		t.Errorf("Expected a backend reload after invalidation, got %d loads", src.loads)
	}
}

func TestRedisOutageFallsBackToBackend(t *testing.T) {
	rdb := newFakeRedis()
	rdb.readErr = fmt.Errorf("dial tcp: connection refused")
	src := backend()

	snap, err := NewSource(rdb, src, Config{Key: "custom"}, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Expected backend fallback, got %v", err)
	}
	if src.loads != 1 || len(snap.Rules) != 1 {
		t.Errorf("Expected one backend load with 1 rule, got %d loads, %d rules", src.loads, len(snap.Rules))
	}
}

func TestCorruptCacheEntryIsReplaced(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data[DefaultKey] = "{not json"
	src := backend()

	if _, err := NewSource(rdb, src, Config{}, nil).Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.loads != 1 {
		t.Errorf("Expected corrupt entry to trigger a backend load, got %d", src.loads)
	}
	if rdb.data[DefaultKey] == "{not json" {
		t.Error("Expected the corrupt entry to be overwritten")
	}
}
