package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newLoggedEcho(buf *bytes.Buffer) *echo.Echo {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	return e
}

func TestRequestLogger_LogsRouteNotReference(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)
	e.GET("/media/s/:ref", func(c echo.Context) error {
		return c.NoContent(http.StatusPartialContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/media/s/secret-file-id", http.NoBody)
	req.Header.Set("Range", "bytes=0-9")
	e.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "route=/media/s/:ref") {
		t.Errorf("expected route pattern in log, got %q", out)
	}
	if strings.Contains(out, "secret-file-id") {
		t.Errorf("media reference leaked into log: %q", out)
	}
	if !strings.Contains(out, "bytes=0-9") {
		t.Errorf("expected range in log, got %q", out)
	}
	if !strings.Contains(out, "status=206") {
		t.Errorf("expected status=206 in log, got %q", out)
	}
}

func TestRequestLogger_DirectRedirect(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)
	e.GET("/media/d/:ref", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "https://cdn.example/file/videos/a.mp4")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/media/d/AgADBAAD", http.NoBody))

	out := buf.String()
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("expected INFO level for redirect, got %q", out)
	}
	if !strings.Contains(out, "route=/media/d/:ref") || !strings.Contains(out, "status=302") {
		t.Errorf("expected direct route and 302 in log, got %q", out)
	}
	if strings.Contains(out, "AgADBAAD") || strings.Contains(out, "cdn.example") {
		t.Errorf("reference or CDN location leaked into log: %q", out)
	}
}

func TestRequestLogger_WarnsOnStreamBadGateway(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)
	e.GET("/media/s/:ref", func(c echo.Context) error {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/media/s/abc123", http.NoBody))

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN level for 502, got %q", out)
	}
	if !strings.Contains(out, "status=502") || !strings.Contains(out, "route=/media/s/:ref") {
		t.Errorf("expected stream route and 502 in log, got %q", out)
	}
}

func TestRequestLogger_HTTPErrorStatusAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)
	e.GET("/media/s/:ref", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "fetch https://api.telegram.org/file/bot123456:AAF-secret/a.mp4")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/media/s/abc123", http.NoBody))

	out := buf.String()
	if !strings.Contains(out, "status=503") {
		t.Errorf("expected status from HTTP error, got %q", out)
	}
	if strings.Contains(out, "AAF-secret") {
		t.Errorf("bot token leaked into log: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redacted error in log, got %q", out)
	}
}
