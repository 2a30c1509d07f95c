package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/dashboard-gateway/internal/config"
	"github.com/jrsteele09/dashboard-gateway/reports"
	"github.com/jrsteele09/dashboard-gateway/token"
	"github.com/jrsteele09/dashboard-gateway/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// TenantChecker reports whether a tenant has a backing database.
type TenantChecker interface {
	Exists(ctx context.Context, tenantID string) bool
}

// Authenticator checks submitted credentials.
type Authenticator interface {
	Login(ctx context.Context, tenantID, username, password string) (*users.User, error)
}

// DatabaseResolver maps a tenant to its engine database id.
type DatabaseResolver interface {
	DatabaseID(ctx context.Context, tenantID string) int
}

// Deps are the collaborators the server is built from. Databases and
// Registry are optional.
type Deps struct {
	Tokens    *token.Manager
	Tenants   TenantChecker
	Users     Authenticator
	Reports   *reports.Executor
	Databases DatabaseResolver
	Registry  *prometheus.Registry
}

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	location *time.Location

	tokens    *token.Manager
	tenants   TenantChecker
	users     Authenticator
	reports   *reports.Executor
	databases DatabaseResolver

	registry     *prometheus.Registry
	metrics      *gatewayMetrics
	loginLimiter *IPRateLimiter
	pages        http.Handler
}

func New(c config.Config, deps Deps) (*Server, error) {
	if deps.Tokens == nil || deps.Tenants == nil || deps.Users == nil || deps.Reports == nil {
		return nil, fmt.Errorf("[Server New] tokens, tenants, users and reports are required")
	}

	loc, err := loadLocation(c.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("[Server New] invalid timezone: %w", err)
	}

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		env:       c.GetEnv(),
		mux:       http.NewServeMux(),
		config:    c,
		location:  loc,
		tokens:    deps.Tokens,
		tenants:   deps.Tenants,
		users:     deps.Users,
		reports:   deps.Reports,
		databases: deps.Databases,
		registry:  registry,
		metrics:   newGatewayMetrics(registry),
	}
	if c.GetEnableRateLimiting() {
		s.loginLimiter = NewIPRateLimiter(c.GetLoginRateLimit(), c.GetLoginRateBurst())
	}

	s.pages, err = pageHandler(c.GetDashboardUpstreamURL())
	if err != nil {
		return nil, fmt.Errorf("[Server New] invalid dashboard upstream: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.loginLimiter != nil {
		s.loginLimiter.Stop()
	}
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "*", route
		}
		log.Debug().Str("method", colorMethod(method)).Str("path", path).Msg("Route registered")
	}
}

// databaseID selects the tenant's engine database when a resolver is
// configured.
func (s *Server) databaseID(ctx context.Context, tenantID string) *int {
	if s.databases == nil {
		return nil
	}
	id := s.databases.DatabaseID(ctx, tenantID)
	return &id
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// pageHandler proxies dashboard pages to the upstream UI server, or answers
// with a placeholder when none is configured.
func pageHandler(upstream string) (http.Handler, error) {
	if upstream == "" {
		return http.HandlerFunc(placeholderPage), nil
	}
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Err(err).Str("path", r.URL.Path).Msg("Dashboard upstream unavailable")
		writeJSONError(w, http.StatusBadGateway, "Bad gateway", "dashboard upstream unavailable", nil)
	}
	return proxy, nil
}
