package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	GraphQL *GraphQLHTTP
	Session echo.MiddlewareFunc
	// CSRF is applied to the GraphQL route when set.
	CSRF    echo.MiddlewareFunc
	Store   Pinger
	Metrics *metrics.Metrics
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			logging.FromContext(ctx).Warn("ready_error", "status", 503, "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	gql := e.Group("/graphql")
	if d.CSRF != nil {
		gql.Use(d.CSRF)
	}
	gql.Use(d.Session)

	gql.POST("", d.GraphQL.Serve)
	gql.GET("", d.GraphQL.Serve)
}
