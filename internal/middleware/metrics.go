package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tg-media-proxy/internal/metrics"
)

// MetricsMiddleware records request count, latency and in-flight requests.
// Samples are taken in a deferred call so a stream aborted mid-body still
// counts, labelled with the status that was already sent.
func MetricsMiddleware(m *metrics.Metrics, paths metrics.PathLabels) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			m.RequestsInFlight.Inc()
			start := time.Now()

			defer func() {
				m.RequestsInFlight.Dec()

				method := metrics.NormalizeMethod(c.Request().Method)
				status := strconv.Itoa(responseStatus(c, err))
				path := paths.Label(c.Request().URL.Path)

				m.RequestsTotal.WithLabelValues(method, status, path).Inc()
				m.RequestDuration.WithLabelValues(method, status, path).Observe(time.Since(start).Seconds())
			}()

			return next(c)
		}
	}
}

// responseStatus returns the status the client will see. An *echo.HTTPError
// is written later by the central error handler, so its code wins.
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if err != nil && errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}
