// Package middleware provides the HTTP middleware of the storefront API.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// route attribute keys for the OTEL size histograms
const (
	attrHTTPMethod = attribute.Key("http.method")
	attrHTTPRoute  = attribute.Key("http.route")
)

// Metrics records request count, latency and in-flight requests on the
// Prometheus registry. Routes are labelled with their gin pattern so ids in
// paths do not explode cardinality. A nil collector disables it.
func Metrics(m *telemetry.HTTPMetrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		done := m.Begin(c.Request.Method)
		c.Next()
		done(c.FullPath(), c.Writer.Status())
	}
}

// httpSizeMetrics holds the body size histograms exported over OTLP
type httpSizeMetrics struct {
	requestSize  *telemetry.Histogram
	responseSize *telemetry.Histogram
}

func newHTTPSizeMetrics(meter metric.Meter) (*httpSizeMetrics, error) {
	requestSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
	})
	if err != nil {
		return nil, err
	}
	responseSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000},
	})
	if err != nil {
		return nil, err
	}
	return &httpSizeMetrics{requestSize: requestSize, responseSize: responseSize}, nil
}

// SizeMetrics records request and response body sizes through the OTEL
// meter provider. It is a no-op when the provider is missing or disabled.
func SizeMetrics(mp *telemetry.MeterProvider) gin.HandlerFunc {
	if mp == nil || !mp.IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return SizeMetricsWithMeter(mp.Meter("http.server"))
}

// SizeMetricsWithMeter is SizeMetrics over an existing meter
func SizeMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	sizes, err := newHTTPSizeMetrics(meter)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		requestSize := c.Request.ContentLength

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []attribute.KeyValue{
			attrHTTPMethod.String(c.Request.Method),
			attrHTTPRoute.String(route),
		}
		ctx := c.Request.Context()
		if requestSize > 0 {
			sizes.requestSize.Record(ctx, float64(requestSize), attrs...)
		}
		if size := c.Writer.Size(); size > 0 {
			sizes.responseSize.Record(ctx, float64(size), attrs...)
		}
	}
}
