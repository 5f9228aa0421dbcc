package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	t.Parallel()
	m := New("test")

	m.ChargeSucceeded()
	m.ChargeSucceeded()
	m.ChargeFailed()
	m.OrderCreated()
	m.OrderReconciled()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.charges.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.charges.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersReconciled))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.OrderCreated() })
}

func TestMiddlewareAndHandler(t *testing.T) {
	t.Parallel()
	m := New("test")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/health/live", "200")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), "orders_created_total")
}
