package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one service instance.
type Metrics struct {
	ServiceName string

	RequestCounter           *prometheus.CounterVec
	RequestDurationHistogram *prometheus.HistogramVec
	RatingRecomputes         *prometheus.CounterVec
	gatherer                 prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry, serviceName string) *Metrics {
	m := &Metrics{
		ServiceName: serviceName,
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDurationHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		RatingRecomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rating_recomputes_total",
				Help: "Product rating recomputations by outcome",
			},
			[]string{"service", "outcome"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.RequestCounter, m.RequestDurationHistogram, m.RatingRecomputes)
	return m
}

// ObserveRecompute records one rating recomputation. err == nil counts as success.
func (m *Metrics) ObserveRecompute(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RatingRecomputes.WithLabelValues(m.ServiceName, outcome).Inc()
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			path := c.Path()

			m.RequestCounter.WithLabelValues(m.ServiceName, method, path, status).Inc()
			m.RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path, status).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
