// Package metrics provides Prometheus metrics for the media proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	StreamedBytes     prometheus.Counter

	ResolveDuration *prometheus.HistogramVec

	BotUpdates *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_media_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tg_media_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tg_media_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tg_media_proxy_upstream_request_duration_seconds",
			Help:    "Time to first byte of upstream CDN responses in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_media_proxy_upstream_responses_total",
			Help: "Total upstream CDN responses by method and status code.",
		}, []string{"method", "status_code"}),

		StreamedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tg_media_proxy_streamed_bytes_total",
			Help: "Total media bytes written to stream clients.",
		}),

		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tg_media_proxy_resolve_duration_seconds",
			Help:    "File lookup latency against the Bot API in seconds.",
			Buckets: defaultBuckets,
		}, []string{"result"}),

		BotUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_media_proxy_bot_updates_total",
			Help: "Telegram updates handled by the bot, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.StreamedBytes,
		m.ResolveDuration,
		m.BotUpdates,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// PathLabels maps request paths to a bounded set of label values.
type PathLabels struct {
	mediaPrefix string
	routes      []string
}

// NewPathLabels returns the labels for the given media prefix (e.g. "/media")
// and metrics endpoint path.
func NewPathLabels(mediaPrefix, metricsPath string) PathLabels {
	routes := []string{"/health", "/status"}
	if metricsPath != "" {
		routes = append(routes, metricsPath)
	}
	return PathLabels{mediaPrefix: mediaPrefix, routes: routes}
}

// Label returns the label for path. Media routes collapse to "<prefix>/d"
// and "<prefix>/s" so media references never become label values.
func (p PathLabels) Label(path string) string {
	for _, kind := range []string{"/d", "/s"} {
		route := p.mediaPrefix + kind
		if path == route || strings.HasPrefix(path, route+"/") {
			return route
		}
	}
	for _, route := range p.routes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return route
		}
	}
	return "other"
}
