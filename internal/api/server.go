package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"weaponwatch-server-go/internal/api/handlers"
	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/services"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler       *handlers.HealthHandler
	siteHandler         *handlers.SiteHandler
	detectionHandler    *handlers.DetectionHandler
	verificationHandler *handlers.VerificationHandler
}

func NewServer(cfg *config.Config, sc *services.ServiceContainer) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	var messaging interface{ IsConnected() bool }
	if sc.Messaging != nil {
		messaging = sc.Messaging
	}

	return &Server{
		config:              cfg,
		router:              router,
		healthHandler:       handlers.NewHealthHandler(cfg.ServerID, messaging),
		siteHandler:         handlers.NewSiteHandler(sc.Store, sc.Feed),
		detectionHandler:    handlers.NewDetectionHandler(sc.Verification),
		verificationHandler: handlers.NewVerificationHandler(sc.Verification),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting incident API")
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping incident API")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetServer() *http.Server {
	return s.server
}
