// Package middleware provides HTTP middleware for the inbox API.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/welldanyogia/webrana-inbox-backend/internal/logger"
)

// APIKeyAuth requires "Authorization: Bearer <apiKey>" on every request
// except the probe endpoints. Keys are compared in constant time. An empty
// apiKey disables the check.
func APIKeyAuth(apiKey string, events *logger.EventLogger) echo.MiddlewareFunc {
	if apiKey == "" && events != nil {
		events.Logger().Warn("API_KEY not set - API is UNSECURED")
	}

	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(c echo.Context) bool {
			return apiKey == "" || probePaths[c.Request().URL.Path]
		},
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			reason, message := "invalid api key", "invalid API key"
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				reason, message = "missing authorization header", "missing authorization header"
			}
			if events != nil {
				events.AuthFailure(c.RealIP(), c.Request().URL.Path, reason)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
				"error": message,
				"code":  "UNAUTHORIZED",
			})
		},
	})
}
