package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// unmatchedRoute labels requests that hit no registered route, keeping path cardinality bounded.
const unmatchedRoute = "unmatched"

// probeRoutes are scraped by orchestrators every few seconds and are left out of request metrics.
var probeRoutes = map[string]struct{}{
	"/health": {},
	"/ready":  {},
}

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter, namespace string) (*httpInstruments, error) {
	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_http_requests_in_flight", namespace),
		metric.WithDescription("Number of HTTP requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpInstruments{requests: requests, duration: duration, inFlight: inFlight}, nil
}

// HTTPMetricsMiddleware records request count, latency and in-flight requests labeled by
// method, route pattern and status code. Health probes are not recorded. If the
// instruments cannot be created the middleware only passes requests through.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	instruments, err := newHTTPInstruments(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := routeLabel(c.FullPath())
		if _, probe := probeRoutes[route]; probe {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		routeAttrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
		)

		instruments.inFlight.Add(ctx, 1, routeAttrs)
		start := time.Now()

		c.Next()

		instruments.inFlight.Add(ctx, -1, routeAttrs)

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		instruments.requests.Add(ctx, 1, attrs)
		instruments.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// routeLabel maps gin's matched route pattern to the path label.
func routeLabel(fullPath string) string {
	if fullPath == "" {
		return unmatchedRoute
	}
	return fullPath
}
