package watcher

import (
	"context"

	"github.com/rs/zerolog"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/escalation"
	"weaponwatch-server-go/internal/services/notify"
	"weaponwatch-server-go/internal/store"
)

// Service is the sole entry point into the escalation state machine. It
// consumes (previous, current) snapshot pairs from the changefeed and reacts
// exactly once per genuine new detection: stamp the server-side DetectedAt,
// arm the confirmation window, and fan out the pending notifications.
//
// Redelivery of the same underlying change is expected; the conditional stamp
// in the store makes a duplicate delivery a no-op, and the notification
// dedup keys absorb any repeat fan-out attempt.
type Service struct {
	cfg        *config.Config
	store      *store.Store
	escalation *escalation.Service
	notify     *notify.Service
	logger     zerolog.Logger
}

func NewService(cfg *config.Config, st *store.Store, esc *escalation.Service, notifier *notify.Service) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		escalation: esc,
		notify:     notifier,
		logger:     logging.NewServiceLogger(cfg, "watcher"),
	}
}

// HandleChange processes one changefeed event.
func (s *Service) HandleChange(ctx context.Context, change models.SiteChange) error {
	if !change.NewDetection() {
		return nil
	}

	siteID := change.Current.ID
	cameraID := change.Current.DetectedCameraID
	logger := logging.WithSite(s.logger, siteID).With().Str("camera_id", cameraID).Logger()

	site, stamped, err := s.store.StampDetection(ctx, siteID, cameraID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to stamp detection")
		return err
	}
	if !stamped {
		// The same change was already processed; never re-stamp. The window
		// may still be unarmed if the earlier handler died between the stamp
		// and the timer write, so re-arm; Arm no-ops when the row exists and
		// the notification dedup absorbs any repeat fan-out.
		logger.Debug().Msg("Detection already stamped, re-arming on redelivery")
		if site.DetectedAt != nil && site.CycleID != "" && !site.ActiveEvent {
			if err := s.escalation.Arm(ctx, site); err != nil {
				logger.Error().Err(err).Msg("Failed to re-arm confirmation window")
				return err
			}
		}
		return nil
	}
	logger = logging.WithCycle(logger, site.CycleID)

	if err := s.escalation.Arm(ctx, site); err != nil {
		logger.Error().Err(err).Msg("Failed to arm confirmation window")
		return err
	}

	roster, err := s.store.ListStakeholders(ctx, siteID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load stakeholder roster")
		return err
	}

	distinguished := ""
	if holder, err := s.store.CurrentAuthority(ctx, siteID); err == nil {
		distinguished = holder.ID
	} else {
		logger.Warn().Err(err).Msg("Site has no current authority")
	}

	s.notify.FanOut(site, roster, models.PhasePending, distinguished)

	logger.Info().
		Time("detected_at", *site.DetectedAt).
		Int("stakeholders", len(roster)).
		Msg("New detection entered pending verification")
	return nil
}
