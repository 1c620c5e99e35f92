// Package service implements the resolve-then-forward media logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/model"
)

var (
	// ErrNotFound is returned when a media reference cannot be resolved.
	ErrNotFound = errors.New("media not found")
	// ErrUpstreamUnavailable is returned when the resolved location cannot be fetched.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Locator resolves a media reference to a short-lived download location.
type Locator interface {
	Resolve(ctx context.Context, ref model.MediaReference) (model.ResolvedLocation, error)
}

// Fetcher issues the upstream GET for a resolved location.
type Fetcher interface {
	DoStream(ctx context.Context, url string, header http.Header) (*model.StreamResponse, error)
}

// MediaService resolves media references and opens upstream streams.
// It holds no per-request state.
type MediaService struct {
	locator       Locator
	fetcher       Fetcher
	logger        *slog.Logger
	streamTimeout time.Duration
}

// NewMediaService creates a MediaService.
func NewMediaService(locator Locator, fetcher Fetcher, cfg *config.Config, logger *slog.Logger) *MediaService {
	return &MediaService{
		locator:       locator,
		fetcher:       fetcher,
		logger:        logger.With("component", "media_service"),
		streamTimeout: cfg.Upstream.StreamTimeout(),
	}
}

// Direct resolves ref for a redirect. The location is fresh on every call.
func (s *MediaService) Direct(ctx context.Context, ref model.MediaReference) (model.ResolvedLocation, error) {
	loc, err := s.locator.Resolve(ctx, ref)
	if err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return loc, nil
}

// Stream resolves ref and opens the upstream body, forwarding rangeHeader
// verbatim when non-empty. The returned header set has hop-by-hop headers
// removed. The caller must close the body; closing it also releases the
// stream deadline, if one is configured.
func (s *MediaService) Stream(ctx context.Context, ref model.MediaReference, rangeHeader string) (*model.StreamResponse, error) {
	loc, err := s.locator.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	cancel := context.CancelFunc(func() {})
	if s.streamTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.streamTimeout)
	}

	header := make(http.Header)
	if rangeHeader != "" {
		header.Set("Range", rangeHeader)
	}

	s.logger.Debug("opening upstream stream",
		"file_path", loc.FilePath,
		"range", rangeHeader,
	)

	resp, err := s.fetcher.DoStream(ctx, loc.URL, header)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	resp.Header = model.StripHopByHop(resp.Header)
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases a context when the wrapped body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
