package api

import (
	"net/http"

	_ "weaponwatch-server-go/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (s *Server) setupSwagger() {
	s.router.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"title":       "WeaponWatch Server API",
			"version":     "1.0.0",
			"description": "Incident verification and escalation server for camera weapon-detection sites",
			"swagger_ui":  "/docs/index.html",
			"endpoints": gin.H{
				"health":     "/health",
				"info":       "/",
				"sites":      "/sites/:site_id",
				"feed":       "/sites/:site_id/ws",
				"detections": "/sites/:site_id/detections",
				"confirm":    "/sites/:site_id/confirm",
				"dismiss":    "/sites/:site_id/dismiss",
				"end_event":  "/sites/:site_id/end-event",
				"transfer":   "/sites/:site_id/transfer",
			},
			"server_id": s.config.ServerID,
			"port":      s.config.Port,
		})
	})

	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
}
