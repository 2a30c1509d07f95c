package server

import (
	"net/http"
	"strings"
)

// placeholderPage stands in for the dashboard UI when no upstream is
// configured. It only reports which page the gateway let through.
func placeholderPage(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())
	if tenantID == "" {
		tenantID, _, _ = strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant": tenantID,
		"path":   r.URL.Path,
	})
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
		})
	}
}
