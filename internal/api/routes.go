package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.ServerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	sites := s.router.Group("/sites")
	{
		sites.GET("/:site_id", s.siteHandler.GetSite)
		sites.GET("/:site_id/ws", s.siteHandler.SiteFeed)
		sites.POST("/:site_id/detections", s.detectionHandler.ReportDetection)
		sites.POST("/:site_id/confirm", s.verificationHandler.Confirm)
		sites.POST("/:site_id/dismiss", s.verificationHandler.Dismiss)
		sites.POST("/:site_id/end-event", s.verificationHandler.EndEvent)
		sites.POST("/:site_id/transfer", s.verificationHandler.Transfer)
	}
}
