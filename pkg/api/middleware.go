package api

import (
	"net/http"
	"os"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders sets standard security response headers on every request.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// requireIngressToken enforces the bearer token named by
// Defaults.IngressTokenEnv on every /v2 request, per spec.md §6's "API
// access token for ingress authentication". When the named environment
// variable is unset, authentication is a no-op — useful for local
// development.
func (s *Server) requireIngressToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			token := os.Getenv(s.cfg.Defaults.IngressTokenEnv)
			if token == "" {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if header != "Bearer "+token {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid bearer token")
			}
			return next(c)
		}
	}
}
