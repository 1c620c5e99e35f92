// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/tg-media-proxy/config.toml",
	"configs/config.toml",
}

// botTokenPattern matches the <bot id>:<secret> shape of Bot API tokens.
var botTokenPattern = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]+$`)

// reservedRoutes are top-level routes the media base path and metrics path must not shadow.
var reservedRoutes = []string{"/health", "/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BotToken   string `kong:"help='Telegram bot token (overrides config).',env='BOT_TOKEN'"`
	PublicHost string `kong:"help='Public host used in generated links (overrides config).',env='PUBLIC_HOST'"`
	BasePath   string `kong:"help='URL path prefix for media routes (overrides config).',env='BASE_PATH'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Upstream UpstreamConfig `toml:"upstream"`
	Bot      BotConfig      `toml:"bot"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string          `toml:"host"`
	Port       int             `toml:"port"` // 0 means "use default" (8080)
	PublicHost string          `toml:"public_host"`
	BasePath   string          `toml:"base_path"`
	RateLimit  RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// TelegramConfig holds Bot API credentials and the file lookup settings.
type TelegramConfig struct {
	BotToken              string `toml:"bot_token"`
	APIBaseURL            string `toml:"api_base_url"`
	ResolveTimeoutSeconds int    `toml:"resolve_timeout_seconds"`
}

// UpstreamConfig holds settings for fetching media from the file CDN.
type UpstreamConfig struct {
	IdleConnections int `toml:"idle_connections"`
	ChunkSizeBytes  int `toml:"chunk_size_bytes"`
	// StreamTimeoutSeconds bounds fetch plus body transfer. 0 means no limit.
	StreamTimeoutSeconds int `toml:"stream_timeout_seconds"`
}

// BotConfig holds update polling settings.
type BotConfig struct {
	Disabled           bool `toml:"disabled"`
	PollTimeoutSeconds int  `toml:"poll_timeout_seconds"`
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

// Load reads the TOML config file (if any) and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/tg-media-proxy/config.toml then configs/config.toml. Without any file
// the configuration comes from flags and environment alone.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

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
	if cli.BotToken != "" {
		c.Telegram.BotToken = cli.BotToken
	}
	if cli.PublicHost != "" {
		c.Server.PublicHost = cli.PublicHost
	}
	if cli.BasePath != "" {
		c.Server.BasePath = cli.BasePath
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Bot token: required, real, well-formed.
	token := c.Telegram.BotToken
	if token == "" {
		return errors.New("telegram.bot_token is required (or set BOT_TOKEN)")
	}
	if token == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram.bot_token contains placeholder value")
	}
	if !botTokenPattern.MatchString(token) {
		return errors.New("telegram.bot_token is malformed; expected <bot id>:<secret>")
	}

	if c.Telegram.APIBaseURL != "" {
		u, err := url.Parse(c.Telegram.APIBaseURL)
		if err != nil {
			return fmt.Errorf("telegram.api_base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "https" {
			return fmt.Errorf("telegram.api_base_url must use HTTPS; got %q", c.Telegram.APIBaseURL)
		}
	}

	if c.Server.PublicHost != "" && strings.Contains(c.Server.PublicHost, "://") {
		u, err := url.Parse(c.Server.PublicHost)
		if err != nil || u.Host == "" {
			return fmt.Errorf("server.public_host is not a valid host or URL; got %q", c.Server.PublicHost)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Telegram.ResolveTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.resolve_timeout_seconds must be non-negative; got %d", c.Telegram.ResolveTimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.ChunkSizeBytes < 0 {
		return fmt.Errorf("upstream.chunk_size_bytes must be non-negative; got %d", c.Upstream.ChunkSizeBytes)
	}
	if c.Upstream.StreamTimeoutSeconds < 0 {
		return fmt.Errorf("upstream.stream_timeout_seconds must be non-negative; got %d", c.Upstream.StreamTimeoutSeconds)
	}
	if c.Bot.PollTimeoutSeconds < 0 {
		return fmt.Errorf("bot.poll_timeout_seconds must be non-negative; got %d", c.Bot.PollTimeoutSeconds)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Media base path must not shadow the fixed routes.
	if base := "/" + strings.Trim(c.Server.BasePath, "/"); base != "/" {
		for _, reserved := range reservedRoutes {
			if base == reserved || strings.HasPrefix(base, reserved+"/") {
				return fmt.Errorf("server.base_path %q conflicts with reserved route %q", c.Server.BasePath, reserved)
			}
		}
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		reserved := append([]string{}, reservedRoutes...)
		if base := strings.Trim(c.Server.BasePath, "/"); base != "" {
			reserved = append(reserved, "/"+base)
		}
		for _, r := range reserved {
			if p == r || strings.HasPrefix(p, r+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, r)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key. The exception is
// upstream.stream_timeout_seconds, where 0 keeps streams unbounded.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "media"
	}
	c.Server.BasePath = strings.Trim(c.Server.BasePath, "/")
	c.Server.PublicHost = strings.TrimRight(c.Server.PublicHost, "/")
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	c.Telegram.APIBaseURL = strings.TrimRight(c.Telegram.APIBaseURL, "/")
	if c.Telegram.ResolveTimeoutSeconds == 0 {
		c.Telegram.ResolveTimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.ChunkSizeBytes == 0 {
		c.Upstream.ChunkSizeBytes = 64 * 1024
	}
	if c.Bot.PollTimeoutSeconds == 0 {
		c.Bot.PollTimeoutSeconds = 60
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

// MediaPrefix returns the route prefix for media endpoints, e.g. "/media".
// An empty base path yields "".
func (c *ServerConfig) MediaPrefix() string {
	base := strings.Trim(c.BasePath, "/")
	if base == "" {
		return ""
	}
	return "/" + base
}

// ResolveTimeout returns the File Locator timeout.
func (c *TelegramConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutSeconds) * time.Second
}

// StreamTimeout returns the stream deadline, or 0 for none.
func (c *UpstreamConfig) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// WarnPermissions logs a warning if the config file is readable by group or others.
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
