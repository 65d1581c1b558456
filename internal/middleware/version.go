package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one served API version.
type APIVersion struct {
	Version string `json:"version"`
	Status  string `json:"status"` // active or deprecated
	Message string `json:"message,omitempty"`
}

// VersionMiddleware stamps responses with the API version and rejects unknown version prefixes.
type VersionMiddleware struct {
	supported map[string]APIVersion
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		supported: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active", Message: "Marketplace catalog API"},
		},
	}
}

// VersionHeader adds X-API-Version (and a deprecation flag when relevant) to every response.
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", version)
			if v, ok := vm.supported[version]; ok && v.Status == "deprecated" {
				c.Response().Header().Set("X-API-Deprecated", "true")
			}
			return next(c)
		}
	}
}

// Resolver returns 404 for a /vN prefix that is not served.
func (vm *VersionMiddleware) Resolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := versionFromPath(c.Request().URL.Path)
			if version == "" {
				return next(c)
			}
			if _, ok := vm.supported[version]; !ok {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error":              "Unsupported API version",
					"supported_versions": strings.Join(vm.Versions(), ", "),
				})
			}
			return next(c)
		}
	}
}

func (vm *VersionMiddleware) Versions() []string {
	versions := make([]string, 0, len(vm.supported))
	for v := range vm.supported {
		versions = append(versions, v)
	}
	return versions
}

// versionFromPath returns "v2" for "/v2/...", "" when the path has no version segment.
func versionFromPath(path string) string {
	segment := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	if len(segment) < 2 || segment[0] != 'v' {
		return ""
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return segment
}
