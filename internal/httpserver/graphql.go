package httpserver

import (
	"encoding/json"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type GraphQLHTTP struct {
	Schema       *graphql.Schema
	SecureCookie bool
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (h *GraphQLHTTP) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "graphql")

	var req graphqlRequest
	if c.Request().Method == http.MethodGet {
		req.Query = c.QueryParam("query")
		req.OperationName = c.QueryParam("operationName")
		if v := c.QueryParam("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				l.Warn("graphql_error", "status", 400, "reason", "bad variables", "error", err)
				return echo.NewHTTPError(http.StatusBadRequest, "variables must be a JSON object")
			}
		}
	} else if err := c.Bind(&req); err != nil {
		l.Warn("graphql_error", "status", 400, "reason", "bad request body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	ctx = session.WithCredentials(ctx, session.CookieCredentials{C: c, Secure: h.SecureCookie})
	resp := h.Schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	if len(resp.Errors) > 0 {
		l.Info("graphql_errors", "operation", req.OperationName, "count", len(resp.Errors), "first", resp.Errors[0].Message)
	}
	return c.JSON(http.StatusOK, resp)
}
