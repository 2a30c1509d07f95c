package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/dashboard-gateway/tenants"
	"github.com/jrsteele09/dashboard-gateway/users"
	"github.com/rs/zerolog/log"
)

type messageBody struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler checks the submitted credentials against the tenant named by
// the Referer and, on success, sets the access and refresh cookies.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			s.metrics.login("bad_request")
			writeJSON(w, http.StatusBadRequest, messageBody{Message: "Invalid request body"})
			return
		}

		tenantID := tenants.ResolveTenant(r)
		if tenantID == "" {
			s.metrics.login("bad_request")
			writeJSON(w, http.StatusBadRequest, messageBody{Message: "Tenant could not be resolved"})
			return
		}

		user, err := s.users.Login(r.Context(), tenantID, req.Username, req.Password)
		if errors.Is(err, users.ErrInvalidCredentials) {
			s.metrics.login("invalid")
			log.Info().Str("tenant", tenantID).Str("username", req.Username).Msg("Login rejected")
			writeJSON(w, http.StatusUnauthorized, messageBody{Message: "Invalid credentials"})
			return
		}
		if err != nil {
			s.metrics.login("error")
			log.Err(err).Str("tenant", tenantID).Msg("Login failed")
			writeJSON(w, http.StatusInternalServerError, messageBody{Message: "Internal server error"})
			return
		}

		pair, err := s.tokens.IssuePair(user.Identity(), tenantID)
		if err != nil {
			s.metrics.login("error")
			log.Err(err).Str("tenant", tenantID).Msg("Failed to issue session tokens")
			writeJSON(w, http.StatusInternalServerError, messageBody{Message: "Internal server error"})
			return
		}

		s.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
		s.metrics.login("success")
		log.Info().Str("tenant", tenantID).Str("user_id", user.ID).Msg("User logged in")
		writeJSON(w, http.StatusOK, messageBody{Message: "Login successful"})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearSessionCookies(w)
		writeJSON(w, http.StatusOK, messageBody{Message: "Logout successful"})
	}
}
