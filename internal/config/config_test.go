package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"quote-engine/internal/errors"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.Backend != BackendRulebook {
		t.Errorf("Expected rulebook backend by default, got %s", cfg.Gateway.Backend)
	}
	if cfg.Gateway.CacheTTL.Std() != 5*time.Minute {
		t.Errorf("Expected 5m cache TTL, got %s", cfg.Gateway.CacheTTL.Std())
	}
	if !cfg.Pricing.FloorAtZero {
		t.Error("Expected floor_at_zero to default to true")
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.json")
	body := `{
  "server": {"addr": ":9090"},
  "gateway": {"backend": "postgres", "cache_ttl": "30s", "postgres": {"max_open_conns": 4}},
  "pricing": {"floor_at_zero": false}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUOTE_GATEWAY_POSTGRES_DSN", "postgres://quotes@localhost/quotes")
	t.Setenv("QUOTE_GATEWAY_REDIS_ENABLED", "true")
	t.Setenv("QUOTE_GATEWAY_REDIS_TTL", "2m")
	t.Setenv("QUOTE_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected addr from file, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout.Std() != 10*time.Second {
		t.Errorf("Expected default read timeout to survive a partial file, got %s", cfg.Server.ReadTimeout.Std())
	}
	if cfg.Gateway.CacheTTL.Std() != 30*time.Second {
		t.Errorf("Expected 30s cache TTL, got %s", cfg.Gateway.CacheTTL.Std())
	}
	if cfg.Gateway.Postgres.DSN != "postgres://quotes@localhost/quotes" || cfg.Gateway.Postgres.MaxOpenConns != 4 {
		t.Errorf("Unexpected postgres config %+v", cfg.Gateway.Postgres)
	}
	if !cfg.Gateway.Redis.Enabled || cfg.Gateway.Redis.TTL.Std() != 2*time.Minute {
		t.Errorf("Expected redis enabled with 2m TTL, got %+v", cfg.Gateway.Redis)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug logging from env, got %s", cfg.Logging.Level)
	}
	if cfg.Pricing.FloorAtZero {
		t.Error("Expected floor_at_zero false from file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown backend":      func(c *Config) { c.Gateway.Backend = "sqlite" },
		"missing rulebook":     func(c *Config) { c.Gateway.RulebookPath = "" },
		"postgres without dsn": func(c *Config) { c.Gateway.Backend = BackendPostgres },
		"zero ttl":             func(c *Config) { c.Gateway.CacheTTL = 0 },
		"redis without addr": func(c *Config) {
			c.Gateway.Redis.Enabled = true
			c.Gateway.Redis.Addr = ""
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); !errors.IsType(err, errors.TypeConfig) {
				t.Errorf("Expected CONFIG_ERROR, got %v", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestInvalidFileIsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	os.WriteFile(path, []byte(`{"gateway": {"cache_ttl": "soon"}}`), 0o644)

	if _, err := Load(path); !errors.IsType(err, errors.TypeConfig) {
		t.Errorf("Expected CONFIG_ERROR, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quote.json")
	cfg := Default()
	cfg.Gateway.CacheTTL = Duration(90 * time.Second)

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Gateway.CacheTTL.Std() != 90*time.Second {
		t.Errorf("Expected 1m30s after round trip, got %s", loaded.Gateway.CacheTTL.Std())
	}
}
