package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(s.LoginRateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteBranches, ChainMiddleware(s.BranchesHandler(), s.APIMiddleware(s.Gateway)...))
	s.RegisterRouteHandler("POST "+RouteWidgetReport, ChainMiddleware(s.WidgetReportHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("POST "+RouteWidgetBranch, ChainMiddleware(s.WidgetBranchHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteWebWidgets, ChainMiddleware(s.WebWidgetsHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteWebReportList, ChainMiddleware(s.WebReportListHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteUsers, ChainMiddleware(s.UsersHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteNotifications, ChainMiddleware(s.NotificationsHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteOrderDetail, ChainMiddleware(s.OrderDetailHandler(), s.APIMiddleware(s.Gateway, s.RequireSession)...))
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {}, s.APIMiddleware()...))

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Everything else is a dashboard page
	s.RegisterRouteHandler("/", ChainMiddleware(s.pages.ServeHTTP, s.PageMiddleware(s.Gateway)...))
}
