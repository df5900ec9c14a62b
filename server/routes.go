package server

func (s *Server) initRoutes() {
	// OAuth login flow
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))

	// Token lifecycle
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogoutAll, ChainMiddleware(s.LogoutAllHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// Authenticated routes
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
