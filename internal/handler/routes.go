// Package handler contains the HTTP handlers and route wiring.
package handler

import (
	"github.com/labstack/echo/v4"

	"tg-media-proxy/internal/config"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, media *MediaHandler, health *HealthHandler) {
	e.GET("/health", health.Health)
	e.GET("/status", health.Status)

	prefix := cfg.Server.MediaPrefix()
	e.GET(prefix+"/d/:ref", media.Direct)
	e.GET(prefix+"/s/:ref", media.Stream)
}
