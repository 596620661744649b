package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const demoUserID = "demo-user-001"

// sample auth middleware for demo purpose
// later we can expand this to jwt auth or session auth
func AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid := c.Request().Header.Get("X-User-Id"); uid != "" {
				c.Set("user_id", uid)
			} else {
				c.Set("user_id", demoUserID)
			}
			return next(c)
		}
	}
}

// AdminAuthMiddleware gates operator endpoints on a static bearer token.
func AdminAuthMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" || c.Request().Header.Get("X-Admin-Token") != token {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
			}
			c.Set("admin_id", c.Request().Header.Get("X-Admin-Id"))
			return next(c)
		}
	}
}

// BotSecretMiddleware authenticates the chat-bot webhook by its shared
// secret header.
func BotSecretMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" || c.Request().Header.Get("X-Bot-Api-Secret-Token") != secret {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
			}
			return next(c)
		}
	}
}
