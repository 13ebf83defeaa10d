package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	FingerprintNone   = "none"
	FingerprintChrome = "chrome"
)

type Config struct {
	Server      ServerConfig
	Search      SearchConfig
	Fetch       FetchConfig
	Browser     BrowserConfig
	Diagnostics DiagnosticsConfig
	Database    DatabaseConfig `envconfig:"DB"`
	Redis       RedisConfig
	RateLimit   RateLimitConfig `split_words:"true"`
	Logging     LoggingConfig   `envconfig:"LOG"`
}

// Host, Port, CORSAllowedOrigins and TrustProxy also answer to their bare
// variable names (HOST, PORT, CORS_ALLOWED_ORIGINS, TRUST_PROXY).
type ServerConfig struct {
	Host               string        `envconfig:"HOST" default:"0.0.0.0"`
	Port               int           `envconfig:"PORT" default:"3000"`
	ReadTimeout        time.Duration `split_words:"true" default:"15s"`
	WriteTimeout       time.Duration `split_words:"true" default:"60s"`
	RequestTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout    time.Duration `split_words:"true" default:"30s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:*,https://localhost:*"`
	TrustProxy         bool          `envconfig:"TRUST_PROXY" default:"false"`
}

type SearchConfig struct {
	BaseURL string `split_words:"true" default:"https://www.amazon.com"`
}

type FetchConfig struct {
	Mode           string `default:"http"`
	UserAgent      string `split_words:"true"`
	TLSFingerprint string `envconfig:"TLS_FINGERPRINT" default:"none"`
}

type BrowserConfig struct {
	Headless bool          `default:"true"`
	Timeout  time.Duration `default:"30s"`
}

type DiagnosticsConfig struct {
	Dir      string `default:"."`
	Postgres bool   `default:"false"`
}

type DatabaseConfig struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"postgres"`
	Password string
	Name     string `default:"amazon_search"`
	MaxConns    int32         `split_words:"true" default:"5"`
	MinConns    int32         `split_words:"true" default:"0"`
	MaxConnLife time.Duration `split_words:"true" default:"1h"`
	MaxConnIdle time.Duration `split_words:"true" default:"30m"`
}

// RedisConfig leaves event publishing off while Addr is empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int    `default:"0"`
	Stream   string `default:"stream:product_search"`
}

type RateLimitConfig struct {
	RPS   float64 `default:"2"`
	Burst int     `default:"5"`
}

type LoggingConfig struct {
	Level  string `default:"info"`
	Format string `default:"json"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Search.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid search base URL: %q", c.Search.BaseURL)
	}

	switch c.Fetch.Mode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		return fmt.Errorf("invalid fetch mode: %q", c.Fetch.Mode)
	}

	switch c.Fetch.TLSFingerprint {
	case FingerprintNone, FingerprintChrome:
	default:
		return fmt.Errorf("invalid TLS fingerprint: %q", c.Fetch.TLSFingerprint)
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}

	if c.Diagnostics.Postgres && c.Database.Host == "" {
		return fmt.Errorf("database host is required for postgres diagnostics")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	return nil
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
