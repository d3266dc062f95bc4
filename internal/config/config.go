// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/edge-resizer/config.toml",
	"configs/config.toml",
}

// Size limits applied when the config leaves them unset. The dimension
// limit is the largest WebP canvas.
const (
	DefaultOriginMaxBytes = 64 * 1024 * 1024
	DefaultMaxDimension   = 16383
	DefaultMaxInputPixels = int64(DefaultMaxDimension) * DefaultMaxDimension
)

// Supported output formats for transform.fallback_format.
var fallbackFormats = map[string]bool{
	"jpeg": true, "png": true, "gif": true, "webp": true,
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config    string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host      string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port      int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	OriginURL string `kong:"help='Origin base URL (overrides config).',env='ORIGIN_URL'"`
	Bucket    string `kong:"help='Destination bucket for transformed variants (overrides config).',env='BUCKET_NAME'"`
	LogLevel  string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Origin    OriginConfig    `toml:"origin"`
	Transform TransformConfig `toml:"transform"`
	Response  ResponseConfig  `toml:"response"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
	// ViewerRewrite enables the namespace rewrite on plain GET requests.
	ViewerRewrite bool `toml:"viewer_rewrite"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// OriginConfig holds settings for fetching original assets.
type OriginConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
	ScratchDir      string `toml:"scratch_dir"`
	ForwardQuery    bool   `toml:"forward_query"`
	MaxBytes        int64  `toml:"max_bytes"` // largest original accepted from the origin
}

// TransformConfig holds the deployment-level transcode policy.
type TransformConfig struct {
	Quality          int    `toml:"quality"`
	MaxResponseBytes int    `toml:"max_response_bytes"`
	DefaultWidth     *int   `toml:"default_width"` // used when only h is requested; nil keeps width unset
	WithoutEnlarge   bool   `toml:"without_enlargement"`
	FallbackFormat   string `toml:"fallback_format"`
	MaxDimension     int    `toml:"max_dimension"`    // largest output width or height
	MaxInputPixels   int64  `toml:"max_input_pixels"` // largest decoded original, width*height
}

// ResponseConfig holds response header policy.
type ResponseConfig struct {
	DefaultCacheControl string   `toml:"default_cache_control"`
	DenyHeaders         []string `toml:"deny_headers"`  // extra exact names, added to the built-in list
	DenyPatterns        []string `toml:"deny_patterns"` // extra regular expressions, anchored on match
}

// StoreConfig holds the S3-compatible variant store settings.
// An empty Bucket disables cache population.
type StoreConfig struct {
	Endpoint            string `toml:"endpoint"`
	Bucket              string `toml:"bucket"`
	Region              string `toml:"region"`
	AccessKey           string `toml:"access_key"`
	SecretKey           string `toml:"secret_key"`
	UseSSL              bool   `toml:"use_ssl"`
	ServeHits           bool   `toml:"serve_hits"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/edge-resizer/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.OriginURL != "" {
		c.Origin.BaseURL = cli.OriginURL
	}
	if cli.Bucket != "" {
		c.Store.Bucket = cli.Bucket
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Origin URL: required, plain or secure transport.
	if c.Origin.BaseURL == "" {
		return fmt.Errorf("origin.base_url is required")
	}
	u, err := url.Parse(c.Origin.BaseURL)
	if err != nil {
		return fmt.Errorf("origin.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin.base_url must use http or https; got %q", c.Origin.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("origin.base_url has no host; got %q", c.Origin.BaseURL)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Origin.TimeoutSeconds < 0 {
		return fmt.Errorf("origin.timeout_seconds must be non-negative; got %d", c.Origin.TimeoutSeconds)
	}
	if c.Origin.IdleConnections < 0 {
		return fmt.Errorf("origin.idle_connections must be non-negative; got %d", c.Origin.IdleConnections)
	}
	if c.Origin.MaxBytes < 0 {
		return fmt.Errorf("origin.max_bytes must be non-negative; got %d", c.Origin.MaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Transform policy.
	if c.Transform.Quality < 0 || c.Transform.Quality > 100 {
		return fmt.Errorf("transform.quality must be 0–100; got %d", c.Transform.Quality)
	}
	if c.Transform.MaxResponseBytes < 0 {
		return fmt.Errorf("transform.max_response_bytes must be non-negative; got %d", c.Transform.MaxResponseBytes)
	}
	if c.Transform.MaxDimension < 0 {
		return fmt.Errorf("transform.max_dimension must be non-negative; got %d", c.Transform.MaxDimension)
	}
	if c.Transform.MaxInputPixels < 0 {
		return fmt.Errorf("transform.max_input_pixels must be non-negative; got %d", c.Transform.MaxInputPixels)
	}
	if w := c.Transform.DefaultWidth; w != nil && *w <= 0 {
		return fmt.Errorf("transform.default_width must be > 0 when set; got %d", *w)
	}
	if f := strings.ToLower(c.Transform.FallbackFormat); f != "" && !fallbackFormats[f] {
		return fmt.Errorf("transform.fallback_format must be one of: jpeg, png, gif, webp; got %q", c.Transform.FallbackFormat)
	}

	for _, p := range c.Response.DenyPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("response.deny_patterns entry %q is not a valid expression: %w", p, err)
		}
	}

	// Store: bucket implies endpoint.
	if c.Store.Bucket != "" && c.Store.Endpoint == "" {
		return fmt.Errorf("store.endpoint is required when store.bucket is set")
	}
	if c.Store.WriteTimeoutSeconds < 0 {
		return fmt.Errorf("store.write_timeout_seconds must be non-negative; got %d", c.Store.WriteTimeoutSeconds)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/healthz", "/resizer/status", "/edge", "/webp", "/original"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB, sized for base64 edge events
	}
	if c.Origin.TimeoutSeconds == 0 {
		c.Origin.TimeoutSeconds = 30
	}
	if c.Origin.IdleConnections == 0 {
		c.Origin.IdleConnections = 100
	}
	if c.Origin.ScratchDir == "" {
		c.Origin.ScratchDir = os.TempDir()
	}
	if c.Origin.MaxBytes == 0 {
		c.Origin.MaxBytes = DefaultOriginMaxBytes
	}
	if c.Transform.Quality == 0 {
		c.Transform.Quality = 80
	}
	if c.Transform.MaxResponseBytes == 0 {
		c.Transform.MaxResponseBytes = 6 * 1024 * 1024
	}
	if c.Transform.MaxDimension == 0 {
		c.Transform.MaxDimension = DefaultMaxDimension
	}
	if c.Transform.MaxInputPixels == 0 {
		c.Transform.MaxInputPixels = DefaultMaxInputPixels
	}
	if c.Transform.FallbackFormat == "" {
		c.Transform.FallbackFormat = "jpeg"
	}
	c.Transform.FallbackFormat = strings.ToLower(c.Transform.FallbackFormat)
	if c.Response.DefaultCacheControl == "" {
		c.Response.DefaultCacheControl = "public, max-age=31536000, must-revalidate"
	}
	if c.Store.WriteTimeoutSeconds == 0 {
		c.Store.WriteTimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
// The file may carry store credentials.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
