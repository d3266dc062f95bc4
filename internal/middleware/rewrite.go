package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"edge-resizer-go/internal/router"
)

// ViewerRewrite returns a pre-routing middleware that moves plain image
// requests into the namespace matching the client's Accept header, the
// same rewrite a viewer-request edge function performs. Service routes and
// paths that already carry a namespace are left alone.
func ViewerRewrite(servicePrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if router.HasNamespace(path) || hasPrefix(path, servicePrefixes) {
				return next(c)
			}

			accept := req.Header.Get(echo.HeaderAccept)
			req.URL.Path = router.Rewrite(path, accept)
			if req.URL.RawPath != "" {
				req.URL.RawPath = router.Rewrite(req.URL.RawPath, accept)
			}
			c.Response().Header().Add(echo.HeaderVary, echo.HeaderAccept)

			return next(c)
		}
	}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
