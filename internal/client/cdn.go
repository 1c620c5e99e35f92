// Package client provides the outbound HTTP clients: the Bot API file
// locator and the CDN fetcher used for streaming.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/metrics"
	"tg-media-proxy/internal/model"
)

// CDNClient fetches media bytes from resolved file locations.
type CDNClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewCDNClient creates a CDNClient with connection pooling.
// The client has no overall timeout: a stream may legitimately run for as
// long as the viewer keeps reading. Only connection setup is bounded.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewCDNClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *CDNClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// Media is forwarded as-is; transparent gzip would break Content-Length
		// and Content-Range.
		DisableCompression: true,
	}

	return &CDNClient{
		httpClient: &http.Client{Transport: transport},
		logger:     logger.With("component", "cdn_client"),
		metrics:    m,
	}
}

// Do executes an HTTP request against the CDN and returns the raw response.
// The caller is responsible for closing the response body.
func (c *CDNClient) Do(req *http.Request) (*model.StreamResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"range", req.Header.Get("Range"),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via StreamResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream issues a GET for url and returns the response body as a stream.
// The caller is responsible for closing the returned body.
// The provided context controls the lifetime of the upstream request:
// when the context is canceled (e.g. client disconnects), the upstream
// request is also canceled.
func (c *CDNClient) DoStream(ctx context.Context, url string, header http.Header) (*model.StreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	return c.Do(req)
}
