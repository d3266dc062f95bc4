package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders must not travel past a single connection.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from requests and marks responses as not to be content-sniffed. Variants
// are served with the type the transformer chose; browsers must not guess.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			c.Response().Header().Set(echo.HeaderXContentTypeOptions, "nosniff")

			return next(c)
		}
	}
}
