package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/retail-ledger/internal/observability"
	"github.com/odyssey-erp/retail-ledger/internal/shared"
	_ "github.com/odyssey-erp/retail-ledger/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://ledger@localhost/ledger")
	t.Setenv("LEDGER_TIMEZONE", "America/Lima")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "JE", cfg.EntryPrefix)
	assert.Equal(t, "PEN", cfg.BaseCurrency)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, "30 2 * * *", cfg.IntegrityCron)
	assert.Equal(t, "America/Lima", cfg.Location().String())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://ledger@localhost/ledger")
	t.Setenv("LEDGER_ENTRY_PREFIX", "AS")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_ENTRY_PREFIX=XX\nLEDGER_BASE_CURRENCY=USD\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LEDGER_BASE_CURRENCY") })

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, "AS", cfg.EntryPrefix, "environment wins over the file")
}

func TestLoadConfigRequiresDSN(t *testing.T) {
	t.Setenv("PG_DSN", "")
	_ = os.Unsetenv("PG_DSN")
	_, err := LoadConfigFrom("")
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := Config{EntryPrefix: "JE", BaseCurrency: "PEN", Timezone: "UTC", RateLimitPerMinute: 10}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"empty prefix":   func(c *Config) { c.EntryPrefix = " " },
		"currency":       func(c *Config) { c.BaseCurrency = "SOLES" },
		"timezone":       func(c *Config) { c.Timezone = "Mars/Olympus" },
		"rate limit":     func(c *Config) { c.RateLimitPerMinute = 0 },
		"negative limit": func(c *Config) { c.RateLimitPerMinute = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel(" Warning ").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
}

func TestIdentityMiddleware(t *testing.T) {
	var got shared.Identity
	handler := IdentityMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("X-Branch-ID", "2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, shared.Identity{UserID: 7, BranchID: 2}, got)

	got = shared.Identity{UserID: 99}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, shared.Identity{}, got, "anonymous callers are allowed")

	for _, bad := range []string{"abc", "-1"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Branch-ID", bad)
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
		assert.Contains(t, rr.Body.String(), "VALIDATION")
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 100, AppRequestTimeout: time.Second}
	router := NewRouter(RouterParams{Config: cfg, Metrics: observability.NewMetrics()})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Ratelimit-Limit"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ledger_http_requests_total")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounting/accounts", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code, "accounting routes are optional")
}
