package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; font-src 'self'; connect-src 'self'; frame-ancestors 'none'"

// attachmentPolicy applies to downloads. Attachments are attacker supplied
// and may be HTML, so they render with scripts and forms disabled.
const attachmentPolicy = "sandbox; default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'"

// SecureHeaders sets the browser hardening headers. API responses carry
// message content and are never cached.
func SecureHeaders() echo.MiddlewareFunc {
	secure := middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: contentSecurityPolicy,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withPolicy := func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

			path := c.Request().URL.Path
			if strings.HasPrefix(path, "/api/") {
				h.Set(echo.HeaderCacheControl, "no-store")
			}
			if strings.HasPrefix(path, "/api/attachments/") {
				h.Set(echo.HeaderContentSecurityPolicy, attachmentPolicy)
			}
			return next(c)
		}
		return secure(withPolicy)
	}
}
