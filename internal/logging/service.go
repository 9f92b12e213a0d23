package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"weaponwatch-server-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("server_id", cfg.ServerID).Str("service", service).Logger()
}

func WithSite(base zerolog.Logger, siteID string) zerolog.Logger {
	return base.With().Str("site_id", siteID).Logger()
}

func WithCycle(base zerolog.Logger, cycleID string) zerolog.Logger {
	return base.With().Str("cycle_id", cycleID).Logger()
}
