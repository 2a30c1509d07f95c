package server

// Route path constants
const (
	// Auth Routes, outside the session gateway
	RouteAuthLogin  = "/api/auth/login"
	RouteAuthLogout = "/api/auth/logout"

	// API Routes
	RouteBranches      = "/api/efr_branches"
	RouteWidgetReport  = "/api/widgetreport"
	RouteWidgetBranch  = "/api/widgetbranch"
	RouteWebWidgets    = "/api/webwidgets"
	RouteWebReportList = "/api/webreportlist"
	RouteUsers         = "/api/efr_users"
	RouteNotifications = "/api/notifications"
	RouteOrderDetail   = "/api/order-detail"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Page Routes
	RouteNotFound = "/notfound"
)

// Paths the session gateway never inspects.
var gatewayExcludedPrefixes = []string{
	"/_next/static",
	"/_next/image",
	"/images",
	"/favicon.ico",
	"/api/auth/",
	RouteHealth,
	RouteMetrics,
}
