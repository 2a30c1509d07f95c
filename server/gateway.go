package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/dashboard-gateway/tenants"
	"github.com/jrsteele09/dashboard-gateway/token"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyTenantID stores the tenant the request is addressed to
	ContextKeyTenantID ContextKey = "tenant_id"
	// ContextKeyClaims stores the verified (or freshly rotated) access claims
	ContextKeyClaims ContextKey = "claims"
)

type decision string

const (
	decisionExcluded       decision = "excluded"
	decisionNotFoundPass   decision = "notfound_pass"
	decisionNotFoundLogin  decision = "notfound_to_login"
	decisionNoTenant       decision = "no_tenant"
	decisionUnknownTenant  decision = "unknown_tenant"
	decisionAnonymous      decision = "anonymous"
	decisionMissingCookies decision = "missing_cookies"
	decisionBadRefresh     decision = "invalid_refresh"
	decisionUndecodable    decision = "undecodable_refresh"
	decisionRotated        decision = "rotated"
	decisionLoggedIn       decision = "already_logged_in"
	decisionAuthenticated  decision = "authenticated"
)

func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(ContextKeyTenantID).(string)
	return tenantID
}

func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok && claims != nil
}

// Gateway decides, before any handler runs, whether a request continues,
// is redirected, or continues with a rotated access token. The checks run
// in a fixed order and the first one that decides wins. Token and tenant
// failures never surface as errors; they become redirects.
func (s *Server) Gateway(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if gatewayExcluded(path) {
			s.metrics.decision(decisionExcluded)
			next(w, r)
			return
		}

		ctx := r.Context()
		tenantID := tenants.ResolveTenant(r)
		isAPI := tenants.IsAPIPath(path)
		isLogin := strings.Contains(path, "login")
		isNotFound := strings.Contains(path, "notfound")

		// 1. The not-found page sends visitors of a real tenant to its login.
		if isNotFound {
			if tenantID != "" && !isAPI && s.tenants.Exists(ctx, tenantID) {
				s.redirect(w, r, decisionNotFoundLogin, loginPath(tenantID))
				return
			}
			s.metrics.decision(decisionNotFoundPass)
			next(w, r)
			return
		}

		// 2. Pages need a tenant.
		if tenantID == "" && !isAPI {
			s.redirect(w, r, decisionNoTenant, RouteNotFound)
			return
		}

		// 3. Pages need a tenant that exists.
		if !isAPI && !strings.Contains(tenantID, "api") && !s.tenants.Exists(ctx, tenantID) {
			s.redirect(w, r, decisionUnknownTenant, "/"+url.PathEscape(tenantID)+RouteNotFound)
			return
		}

		r = r.WithContext(context.WithValue(ctx, ContextKeyTenantID, tenantID))

		// 4. Both cookies are needed, except on the login page and the API.
		accessToken := cookieValue(r, AccessTokenCookie)
		refreshToken := cookieValue(r, RefreshTokenCookie)
		if accessToken == "" || refreshToken == "" {
			if isLogin || isAPI {
				s.metrics.decision(decisionAnonymous)
				next(w, r)
				return
			}
			s.clearSessionCookies(w)
			s.redirect(w, r, decisionMissingCookies, loginPath(tenantID))
			return
		}

		// 5. The refresh token bounds the whole session.
		if _, err := s.tokens.VerifyRefresh(refreshToken, tenantID); err != nil {
			log.Debug().Err(err).Str("tenant", tenantID).Msg("Refresh token rejected")
			s.clearSessionCookies(w)
			s.redirect(w, r, decisionBadRefresh, loginPath(tenantID))
			return
		}

		// 6. An invalid access token is replaced from the refresh token.
		claims, err := s.tokens.VerifyAccess(accessToken, tenantID)
		if err != nil {
			rotated, rotatedClaims, rotateErr := s.tokens.Rotate(refreshToken, tenantID)
			if rotateErr != nil {
				log.Warn().Err(rotateErr).Str("tenant", tenantID).Msg("Failed to rotate access token")
				s.redirect(w, r, decisionUndecodable, loginPath(tenantID))
				return
			}
			s.setAccessCookie(w, rotated)
			s.metrics.decision(decisionRotated)
			next(w, withClaims(r, rotatedClaims))
			return
		}

		// 7. A signed-in user has no business on the login page.
		if isLogin {
			s.redirect(w, r, decisionLoggedIn, "/"+url.PathEscape(tenantID))
			return
		}

		s.metrics.decision(decisionAuthenticated)
		next(w, withClaims(r, claims))
	}
}

// RequireSession rejects API requests that reached a handler without
// session claims.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized", "a valid session is required", nil)
			return
		}
		next(w, r)
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, d decision, location string) {
	s.metrics.decision(d)
	http.Redirect(w, r, location, http.StatusTemporaryRedirect)
}

func withClaims(r *http.Request, claims *token.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims))
}

func loginPath(tenantID string) string {
	return "/" + url.PathEscape(tenantID) + "/login"
}

func gatewayExcluded(path string) bool {
	for _, prefix := range gatewayExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
