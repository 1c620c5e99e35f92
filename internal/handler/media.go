package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"tg-media-proxy/internal/client"
	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/metrics"
	"tg-media-proxy/internal/model"
	"tg-media-proxy/internal/service"
)

// MediaHandler serves the direct-download and stream endpoints.
type MediaHandler struct {
	service   *service.MediaService
	logger    *slog.Logger
	metrics   *metrics.Metrics
	chunkSize int
}

// NewMediaHandler creates a MediaHandler. The metrics parameter is optional.
func NewMediaHandler(svc *service.MediaService, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *MediaHandler {
	return &MediaHandler{
		service:   svc,
		logger:    logger.With("component", "media_handler"),
		metrics:   m,
		chunkSize: cfg.Upstream.ChunkSizeBytes,
	}
}

// Direct redirects the client to the freshly resolved file location.
func (h *MediaHandler) Direct(c echo.Context) error {
	ref := refParam(c)

	loc, err := h.service.Direct(c.Request().Context(), ref)
	if err != nil {
		return h.mapError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Redirect(http.StatusFound, loc.URL)
}

// Stream proxies the file bytes, passing the client's Range header through
// and mirroring the upstream status and headers.
func (h *MediaHandler) Stream(c echo.Context) error {
	req := c.Request()
	ref := refParam(c)

	resp, err := h.service.Stream(req.Context(), ref, req.Header.Get("Range"))
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Each chunk is flushed before the next upstream read, so a slow or
	// vanished client stalls or ends the upstream read as well.
	var written int64
	for chunk, err := range service.Chunks(resp.Body, h.chunkSize) {
		if err != nil {
			h.recordStreamed(written)
			if h.clientGone(c, err) {
				return nil
			}
			h.logger.Error("upstream body failed mid-stream",
				"err", client.RedactError(err),
				"bytes", written,
			)
			// The status line is already out. Aborting the connection is the
			// only way to keep a truncated body from looking complete.
			panic(http.ErrAbortHandler)
		}
		n, werr := c.Response().Write(chunk)
		written += int64(n)
		if werr != nil {
			h.recordStreamed(written)
			if !h.clientGone(c, werr) {
				h.logger.Warn("writing response body", "err", werr, "bytes", written)
			}
			return nil
		}
		c.Response().Flush()
	}

	h.recordStreamed(written)
	return nil
}

// clientGone reports whether err is the result of the client disconnecting.
func (h *MediaHandler) clientGone(c echo.Context, err error) bool {
	if errors.Is(err, context.Canceled) || c.Request().Context().Err() != nil {
		h.logger.Debug("client went away mid-stream")
		return true
	}
	return false
}

func (h *MediaHandler) recordStreamed(n int64) {
	if h.metrics != nil {
		h.metrics.StreamedBytes.Add(float64(n))
	}
}

func (h *MediaHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		h.logger.Info("media not resolved", "err", client.RedactError(err))
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "media not found",
		})
	}

	h.logger.Error("upstream error", "err", client.RedactError(err))

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream request timed out",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "upstream unavailable",
	})
}

// refParam returns the unescaped media reference path parameter.
func refParam(c echo.Context) model.MediaReference {
	raw := c.Param("ref")
	if v, err := url.PathUnescape(raw); err == nil {
		return model.MediaReference(v)
	}
	return model.MediaReference(raw)
}
