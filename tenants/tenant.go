// Package tenants works out which tenant a request belongs to and whether
// the engine knows that tenant.
package tenants

import (
	"net/http"
	"strings"
)

// ResolveTenant returns the tenant id a request is addressed to. Page
// requests carry it as the first path segment. API requests carry it in the
// page that issued them, so it is read from the Referer: the fourth element
// of the header split on "/" ("https:", "", host, tenant). An empty string
// means no tenant could be determined.
func ResolveTenant(r *http.Request) string {
	if IsAPIPath(r.URL.Path) {
		parts := strings.Split(r.Header.Get("Referer"), "/")
		if len(parts) < 4 {
			return ""
		}
		return stripQuery(parts[3])
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	segment, _, _ := strings.Cut(path, "/")
	return segment
}

// IsAPIPath reports whether path addresses the gateway's API surface rather
// than a dashboard page.
func IsAPIPath(path string) bool {
	return strings.Contains(path, "/api/")
}

func stripQuery(segment string) string {
	if i := strings.IndexAny(segment, "?#"); i >= 0 {
		return segment[:i]
	}
	return segment
}
