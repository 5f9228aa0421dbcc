// Package metrics owns the process Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	charges          *prometheus.CounterVec
	ordersCreated    prometheus.Counter
	ordersReconciled prometheus.Counter
}

func New(service string) *Metrics {
	constLabels := prometheus.Labels{"service": service}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "charges_total",
			Help:        "Payment charges by outcome.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orders_created_total",
			Help:        "Orders written after a successful charge.",
			ConstLabels: constLabels,
		}),
		ordersReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "reconciled_orders_total",
			Help:        "Orders written by the reconciler for charges left without one.",
			ConstLabels: constLabels,
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.charges,
		m.ordersCreated,
		m.ordersReconciled,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records one sample per request under the matched route path.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.httpRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// The recorders below are nil-safe so services can run without metrics.

func (m *Metrics) ChargeSucceeded() {
	if m != nil {
		m.charges.WithLabelValues("succeeded").Inc()
	}
}

func (m *Metrics) ChargeFailed() {
	if m != nil {
		m.charges.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.ordersCreated.Inc()
	}
}

func (m *Metrics) OrderReconciled() {
	if m != nil {
		m.ordersReconciled.Inc()
	}
}
