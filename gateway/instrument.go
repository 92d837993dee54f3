package gateway

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Instrumentation collects per-endpoint request counts and latency/size
// histograms.
func Instrumentation() fiber.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "request",
		Name:      "requests_count",
		Help:      "Number of requests per endpoint",
	}, []string{"code", "method", "path"})

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "console",
		Subsystem: "response",
		Name:      "response_time_hist",
		Help:      "console response duration in milliseconds",
	})

	responseSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "console",
		Subsystem: "response",
		Name:      "size_histogram",
		Help:      "console response size",
	})

	for _, collector := range []prometheus.Collector{requests, latency, responseSize} {
		if err := prometheus.Register(collector); err != nil {
			panic(err)
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		duration := float64(time.Since(start)) * 1e-6

		status := strconv.Itoa(c.Response().StatusCode())
		requests.WithLabelValues(status, c.Method(), c.Path()).Inc()
		latency.Observe(duration)
		responseSize.Observe(float64(len(c.Response().Body())))
		return err
	}
}
