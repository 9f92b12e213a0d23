package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/escalation"
	"weaponwatch-server-go/internal/services/feed"
	"weaponwatch-server-go/internal/services/messaging"
	"weaponwatch-server-go/internal/services/notify"
	"weaponwatch-server-go/internal/services/verification"
	"weaponwatch-server-go/internal/services/watcher"
	"weaponwatch-server-go/internal/store"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config       *config.Config
	Store        *store.Store
	Messaging    *messaging.Service
	Notify       *notify.Service
	Escalation   *escalation.Service
	Watcher      *watcher.Service
	Verification *verification.Service
	Feed         *feed.Hub
}

// NewServiceContainer creates a new service container and wires the
// changefeed: store writes publish to NATS and to the dashboard feed, and
// the detection watcher consumes the NATS side.
func NewServiceContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	notifySvc := notify.NewService(cfg, notify.NewExpoPusher(cfg))
	notifySvc.Start()

	escalationSvc := escalation.NewService(cfg, st, notifySvc)

	watcherSvc := watcher.NewService(cfg, st, escalationSvc, notifySvc)
	verificationSvc := verification.NewService(cfg, st, escalationSvc, notifySvc)

	feedHub := feed.NewHub()
	feedHub.Start()

	sc := &ServiceContainer{
		Config:       cfg,
		Store:        st,
		Notify:       notifySvc,
		Escalation:   escalationSvc,
		Watcher:      watcherSvc,
		Verification: verificationSvc,
		Feed:         feedHub,
	}

	// Messaging is optional: without a broker the changefeed short-circuits
	// to in-process delivery and the dashboard feed.
	messagingSvc, err := messaging.NewService(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Messaging unavailable, running with in-process changefeed only")
		st.SetChangeSink(store.MultiSink{feedHub, inProcessSink{watcherSvc}})
	} else {
		sc.Messaging = messagingSvc
		st.SetChangeSink(store.MultiSink{messagingSvc, feedHub})

		if _, err := messagingSvc.SubscribeSiteChanges("watchers", func(change models.SiteChange) {
			if err := watcherSvc.HandleChange(context.Background(), change); err != nil {
				log.Error().Err(err).Str("site_id", change.Current.ID).Msg("Change handling failed")
			}
		}); err != nil {
			return nil, err
		}

		if _, err := messagingSvc.SubscribeDetections("ingest", func(msg messaging.DetectionMessage) {
			report := models.DetectionReport{CameraID: msg.CameraID, ImagePath: msg.ImagePath}
			if _, err := verificationSvc.RecordDetection(context.Background(), msg.SiteID, report); err != nil {
				log.Debug().Err(err).Str("site_id", msg.SiteID).Msg("Broker detection not recorded")
			}
		}); err != nil {
			return nil, err
		}
	}

	// Re-arm any confirmation windows that were pending before restart.
	if err := escalationSvc.Start(ctx); err != nil {
		return nil, err
	}

	return sc, nil
}

// inProcessSink routes changefeed events straight to the watcher when no
// broker is configured.
type inProcessSink struct {
	watcher *watcher.Service
}

func (s inProcessSink) SiteChanged(change models.SiteChange) {
	if err := s.watcher.HandleChange(context.Background(), change); err != nil {
		log.Error().Err(err).Str("site_id", change.Current.ID).Msg("Change handling failed")
	}
}

// Shutdown gracefully shuts down all services. Messaging drains first so no
// broker delivery reaches the watcher or the notify queue after they stop.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var messagingErr error
	if sc.Messaging != nil {
		messagingErr = sc.Messaging.Shutdown(ctx)
		if messagingErr != nil {
			log.Error().Err(messagingErr).Msg("Messaging shutdown error")
		}
	}

	if sc.Escalation != nil {
		if err := sc.Escalation.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Escalation shutdown error")
		}
	}

	if sc.Notify != nil {
		if err := sc.Notify.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Notify shutdown error")
		}
	}

	if sc.Feed != nil {
		if err := sc.Feed.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Feed shutdown error")
		}
	}

	return messagingErr
}
