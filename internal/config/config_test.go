package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "https://www.amazon.com", cfg.Search.BaseURL)
	assert.Equal(t, FetchModeHTTP, cfg.Fetch.Mode)
	assert.Equal(t, FingerprintNone, cfg.Fetch.TLSFingerprint)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, ".", cfg.Diagnostics.Dir)
	assert.False(t, cfg.Diagnostics.Postgres)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "stream:product_search", cfg.Redis.Stream)
	assert.Equal(t, 2.0, cfg.RateLimit.RPS)
	assert.Equal(t, []string{"http://localhost:*", "https://localhost:*"}, cfg.Server.CORSAllowedOrigins)
	assert.False(t, cfg.Server.TrustProxy)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8084")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("SEARCH_BASE_URL", "https://www.amazon.co.uk")
	t.Setenv("FETCH_MODE", "browser")
	t.Setenv("FETCH_USER_AGENT", "agent/1.0")
	t.Setenv("FETCH_TLS_FINGERPRINT", "chrome")
	t.Setenv("DIAGNOSTICS_DIR", "/var/lib/scraper")
	t.Setenv("DB_MAX_CONNS", "9")
	t.Setenv("DB_MAX_CONN_IDLE", "2m")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://www.amazon.co.uk", cfg.Search.BaseURL)
	assert.Equal(t, FetchModeBrowser, cfg.Fetch.Mode)
	assert.Equal(t, "agent/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, FingerprintChrome, cfg.Fetch.TLSFingerprint)
	assert.Equal(t, "/var/lib/scraper", cfg.Diagnostics.Dir)
	assert.Equal(t, int32(9), cfg.Database.MaxConns)
	assert.Equal(t, 2*time.Minute, cfg.Database.MaxConnIdle)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.5, cfg.RateLimit.RPS)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"relative base url", func(c *Config) { c.Search.BaseURL = "/s" }},
		{"ftp base url", func(c *Config) { c.Search.BaseURL = "ftp://amazon.com" }},
		{"unknown fetch mode", func(c *Config) { c.Fetch.Mode = "curl" }},
		{"unknown fingerprint", func(c *Config) { c.Fetch.TLSFingerprint = "firefox" }},
		{"zero rate", func(c *Config) { c.RateLimit.RPS = 0 }},
		{"postgres without host", func(c *Config) { c.Diagnostics.Postgres = true; c.Database.Host = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
