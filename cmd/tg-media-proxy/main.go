package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"tg-media-proxy/internal/bot"
	"tg-media-proxy/internal/client"
	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/handler"
	"tg-media-proxy/internal/links"
	"tg-media-proxy/internal/metrics"
	"tg-media-proxy/internal/middleware"
	"tg-media-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("tg-media-proxy"),
		kong.Description("Telegram media bot with direct and streaming download links."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			fx.Annotate(client.NewFileLocator, fx.As(new(service.Locator))),
			fx.Annotate(client.NewCDNClient, fx.As(new(service.Fetcher))),
			service.NewMediaService,
			links.NewResolver,
			handler.NewMediaHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, registerMetrics, warnConfigPermissions, startServer, startBot),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newMetrics returns nil when metrics are disabled; every consumer treats a
// nil *metrics.Metrics as "do not record".
func newMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// Streams run as long as the client keeps reading.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())

	if m != nil {
		e.Use(middleware.MetricsMiddleware(m, metrics.NewPathLabels(cfg.Server.MediaPrefix(), cfg.Metrics.Path)))
	}

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimiter(cfg.Server.RateLimit.RequestsPerSecond))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func registerMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	if m == nil {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	logger.Info("metrics enabled", "path", cfg.Metrics.Path)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, l *links.Resolver, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "base_url", l.BaseURL("", ""))
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}

func startBot(lc fx.Lifecycle, cfg *config.Config, l *links.Resolver, logger *slog.Logger, m *metrics.Metrics) {
	if cfg.Bot.Disabled {
		logger.Info("bot disabled")
		return
	}

	var b *bot.Bot
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Long polling holds each getUpdates call open for the poll timeout.
			httpClient := &http.Client{
				Timeout: time.Duration(cfg.Bot.PollTimeoutSeconds)*time.Second + cfg.Telegram.ResolveTimeout(),
			}
			api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, cfg.Telegram.APIBaseURL+"/bot%s/%s", httpClient)
			if err != nil {
				return fmt.Errorf("connect bot: %s", client.RedactError(err))
			}
			logger.Info("bot authorized", "username", api.Self.UserName)

			b = bot.New(api, l, cfg, logger, m)
			b.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if b == nil {
				return nil
			}
			return b.Stop(ctx)
		},
	})
}
