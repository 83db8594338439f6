package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass bearer authentication: infrastructure probes and the
// session endpoints that establish or end a login.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/metrics":           true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/api/auth/logout":   true,
	"/api/auth/me":       true,
}

// AuthSkipper returns true for requests whose route should skip bearer
// authentication. It matches on the registered route path.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == "OPTIONS" {
		return true
	}
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path bypasses bearer authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
