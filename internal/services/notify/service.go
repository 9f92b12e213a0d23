package notify

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/models"
)

// delivery is one queued send: a composed message plus its dedup identity.
type delivery struct {
	key string
	msg models.PushMessage
}

// Service performs the role and phase aware notification fan-out. Delivery is
// asynchronous and per-recipient: one stakeholder's failure never blocks or
// aborts the rest, and a logical (site, cycle, recipient, phase) tuple is
// dispatched at most once within the dedup TTL.
type Service struct {
	cfg    *config.Config
	pusher Pusher
	dedup  *gocache.Cache
	logger zerolog.Logger

	queue   chan delivery
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
	cancel  context.CancelFunc
}

func NewService(cfg *config.Config, pusher Pusher) *Service {
	return &Service{
		cfg:    cfg,
		pusher: pusher,
		dedup:  gocache.New(cfg.DedupTTL, cfg.DedupSweep),
		logger: logging.NewServiceLogger(cfg, "notify"),
		queue:  make(chan delivery, cfg.NotifyQueueSize),
	}
}

// Start launches the fan-out workers.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for i := 0; i < s.cfg.FanoutWorkers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.started = true
	s.logger.Info().Int("workers", s.cfg.FanoutWorkers).Msg("Notification fan-out started")
}

// Shutdown stops the workers after the queue drains or the context expires.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	close(s.queue)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
	}
	s.started = false
	return nil
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for d := range s.queue {
		if err := s.pusher.Push(ctx, d.msg); err != nil {
			// Logged locally, never surfaced to the actor whose
			// transition triggered the fan-out.
			s.logger.Warn().Err(err).Str("dedup_key", d.key).Msg("Push delivery failed")
			continue
		}
		s.logger.Debug().Str("dedup_key", d.key).Str("title", d.msg.Title).Msg("Push delivered")
	}
}

// FanOut composes and dispatches one message per roster member for the given
// phase. The distinguished stakeholder (the addressed authority for pending,
// the new/old holder for escalated/timeout) gets the role-specific body.
// Stakeholders without a delivery token are silently skipped.
func (s *Service) FanOut(site *models.Site, roster []models.Stakeholder, phase models.Phase, distinguishedID string) {
	for i := range roster {
		recipient := roster[i]
		s.dispatch(site, &recipient, phase, recipient.ID == distinguishedID)
	}
}

// Direct sends a single recipient message, used for the authority-to-authority
// escalated and timeout phases.
func (s *Service) Direct(site *models.Site, recipient *models.Stakeholder, phase models.Phase) {
	s.dispatch(site, recipient, phase, true)
}

func (s *Service) dispatch(site *models.Site, recipient *models.Stakeholder, phase models.Phase, distinguished bool) {
	if !recipient.Deliverable() {
		// No token registered; not an error.
		s.logger.Debug().
			Str("site_id", site.ID).
			Str("stakeholder_id", recipient.ID).
			Str("phase", phase.String()).
			Msg("Stakeholder has no delivery token, skipping")
		return
	}

	msg, ok := Compose(phase, site, recipient, distinguished)
	if !ok {
		return
	}

	key := models.DedupKey(site.ID, site.CycleID, recipient.ID, phase)
	if err := s.dedup.Add(key, true, gocache.DefaultExpiration); err != nil {
		s.logger.Debug().Str("dedup_key", key).Msg("Duplicate notification suppressed")
		return
	}

	// Shutdown closes the queue under the same mutex; a late delivery from a
	// draining subscription must be dropped, not sent on a closed channel.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.dedup.Delete(key)
		s.logger.Warn().Str("dedup_key", key).Msg("Notifier stopped, message dropped")
		return
	}

	select {
	case s.queue <- delivery{key: key, msg: msg}:
	default:
		// Queue full; drop the dedup entry so a retry can resend.
		s.dedup.Delete(key)
		s.logger.Error().Str("dedup_key", key).Msg("Notification queue full, message dropped")
	}
}
