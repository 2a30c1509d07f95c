package server

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// sessionCookie builds a session cookie. Secure and Domain are only set in
// production so that local development over plain HTTP keeps working.
func (s *Server) sessionCookie(name, value string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if s.config.IsProduction() {
		cookie.Secure = true
		cookie.Domain = s.config.GetCookieDomain()
	}
	return cookie
}

func (s *Server) setSessionCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, s.sessionCookie(AccessTokenCookie, accessToken))
	http.SetCookie(w, s.sessionCookie(RefreshTokenCookie, refreshToken))
}

func (s *Server) setAccessCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, s.sessionCookie(AccessTokenCookie, accessToken))
}

// clearSessionCookies expires both cookies immediately (Max-Age=0 and an
// epoch Expires).
func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := s.sessionCookie(name, "")
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
