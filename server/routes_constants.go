package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth login flow
	RouteLogin    = "/auth/login/{provider}"
	RouteCallback = "/auth/callback/{provider}"

	// Token lifecycle
	RouteRefresh   = "/auth/refresh"
	RouteLogout    = "/auth/logout"
	RouteLogoutAll = "/auth/logout-all"

	// Authenticated user info
	RouteMe = "/auth/me"

	// Operational
	RouteHealth = "/healthz"
)
