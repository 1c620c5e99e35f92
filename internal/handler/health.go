package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tg-media-proxy/internal/links"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	links   *links.Resolver
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(l *links.Resolver, v Version) *HealthHandler {
	return &HealthHandler{links: l, version: v}
}

// Health returns a plain "ok" for liveness probes.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Status returns service information, including the base URL links would
// be built with for this request.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"version":  string(h.version),
		"base_url": h.links.BaseURL(c.Scheme(), c.Request().Host),
	})
}
