package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/notify"
	"weaponwatch-server-go/internal/store"
)

// Service owns the confirmation window. Each live detection cycle gets a
// persisted timer row plus an in-process timer; rows are re-armed after a
// restart and a periodic sweep fires anything whose deadline passed while no
// in-process timer was running. The fire path re-checks site state before
// acting, so a cycle resolved moments earlier escalates as a no-op.
type Service struct {
	cfg    *config.Config
	store  *store.Store
	notify *notify.Service
	logger zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer // cycle id -> armed in-process timer
	cron   *cron.Cron
}

func NewService(cfg *config.Config, st *store.Store, notifier *notify.Service) *Service {
	return &Service{
		cfg:    cfg,
		store:  st,
		notify: notifier,
		logger: logging.NewServiceLogger(cfg, "escalation"),
		timers: make(map[string]*time.Timer),
	}
}

// Start re-arms persisted pending timers and begins the expiry sweep.
func (s *Service) Start(ctx context.Context) error {
	pending, err := s.store.ListPendingTimers(ctx)
	if err != nil {
		return fmt.Errorf("loading pending escalation timers: %w", err)
	}
	for i := range pending {
		s.armInProcess(pending[i].CycleID, pending[i].Deadline)
	}
	if len(pending) > 0 {
		s.logger.Info().Int("count", len(pending)).Msg("Re-armed escalation timers after restart")
	}
	s.armOrphans(ctx)

	s.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.SweepInterval), s.sweep); err != nil {
		return fmt.Errorf("scheduling escalation sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Shutdown stops the sweep and every armed in-process timer. Pending rows
// stay in the store and are re-armed on the next start.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		stopped := s.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	return nil
}

// Arm starts the confirmation window for a freshly stamped cycle. The
// deadline derives from the server-stamped DetectedAt, never a local clock.
// Arming an already-known cycle is a no-op.
func (s *Service) Arm(ctx context.Context, site *models.Site) error {
	if site.CycleID == "" || site.DetectedAt == nil {
		return errors.New("cycle not stamped")
	}

	deadline := site.DetectedAt.Add(s.cfg.ConfirmWindow)
	err := s.store.CreateTimer(ctx, models.EscalationTimer{
		CycleID:  site.CycleID,
		SiteID:   site.ID,
		CameraID: site.DetectedCameraID,
		Deadline: deadline,
		State:    models.TimerStatePending,
	})
	if err != nil {
		return fmt.Errorf("persisting escalation timer: %w", err)
	}

	s.armInProcess(site.CycleID, deadline)
	s.logger.Info().
		Str("site_id", site.ID).
		Str("cycle_id", site.CycleID).
		Time("deadline", deadline).
		Msg("Confirmation window armed")
	return nil
}

// Cancel resolves the window before expiry. Returns true when this call won
// the race against the timer; false means the timer already fired (or the
// cycle was never armed) and the caller should check site state.
func (s *Service) Cancel(ctx context.Context, cycleID string) (bool, error) {
	if cycleID == "" {
		return false, nil
	}
	cancelled, err := s.store.CancelTimer(ctx, cycleID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if t, ok := s.timers[cycleID]; ok {
		t.Stop()
		delete(s.timers, cycleID)
	}
	s.mu.Unlock()
	return cancelled, nil
}

func (s *Service) armInProcess(cycleID string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[cycleID]; ok {
		return
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	s.timers[cycleID] = time.AfterFunc(remaining, func() {
		s.fire(cycleID)
	})
}

// sweep catches deadlines that expired while no in-process timer was armed
// (crashed process, missed AfterFunc). fire guards itself, so double
// invocation is harmless.
func (s *Service) sweep() {
	ctx := context.Background()
	pending, err := s.store.ListPendingTimers(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Escalation sweep failed to list timers")
		return
	}
	now := time.Now().UTC()
	for i := range pending {
		if pending[i].Expired(now) {
			s.fire(pending[i].CycleID)
		}
	}
	s.armOrphans(ctx)
}

// armOrphans creates timer rows for cycles that were stamped but never armed,
// the shape left behind when the process dies between the stamp and the timer
// write. Arm derives the deadline from the stamped DetectedAt, so an orphan
// whose window already lapsed fires immediately.
func (s *Service) armOrphans(ctx context.Context) {
	sites, err := s.store.ListUnarmedSites(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list unarmed pending cycles")
		return
	}
	for i := range sites {
		site := sites[i]
		if err := s.Arm(ctx, &site); err != nil {
			s.logger.Error().Err(err).
				Str("site_id", site.ID).
				Str("cycle_id", site.CycleID).
				Msg("Failed to arm orphaned cycle")
		}
	}
}

// fire runs the escalation action for one cycle: flip the timer row so the
// action happens at most once, re-check that the cycle is still pending, then
// atomically hand authority from the current holder to the designated
// secondary and notify both.
func (s *Service) fire(cycleID string) {
	ctx := context.Background()

	s.mu.Lock()
	delete(s.timers, cycleID)
	s.mu.Unlock()

	fired, err := s.store.MarkTimerFired(ctx, cycleID)
	if err != nil {
		s.logger.Error().Err(err).Str("cycle_id", cycleID).Msg("Failed to flip escalation timer")
		return
	}
	if !fired {
		// Resolved or already fired; nothing to do.
		return
	}

	timer, err := s.store.GetTimer(ctx, cycleID)
	if err != nil {
		s.logger.Error().Err(err).Str("cycle_id", cycleID).Msg("Fired timer has no row")
		return
	}
	logger := logging.WithCycle(logging.WithSite(s.logger, timer.SiteID), cycleID)

	site, err := s.store.GetSite(ctx, timer.SiteID)
	if err != nil {
		logger.Error().Err(err).Msg("Escalation could not load site")
		s.reopen(ctx, cycleID, logger)
		return
	}

	// The cancellation safety net: a resolution that beat us to the record
	// makes the escalation a no-op.
	if site.CycleID != cycleID || site.DetectedCameraID == "" || site.ActiveEvent {
		logger.Info().Msg("Cycle already resolved, escalation is a no-op")
		return
	}

	holder, err := s.store.CurrentAuthority(ctx, site.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Escalation could not resolve current authority")
		s.reopen(ctx, cycleID, logger)
		return
	}
	if site.SecondaryAuthorityID == "" {
		logger.Warn().Msg("No secondary authority configured, escalation skipped")
		return
	}
	if holder.ID == site.SecondaryAuthorityID {
		logger.Info().Msg("Secondary already holds authority, escalation is a no-op")
		return
	}

	err = s.store.TransferAuthority(ctx, store.TransferRequest{
		SiteID: site.ID,
		FromID: holder.ID,
		ToID:   site.SecondaryAuthorityID,
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrActorNotAuthority), errors.Is(err, store.ErrTargetAlreadyAuthority):
		// A concurrent transfer won; the invariant holds either way.
		logger.Info().Err(err).Msg("Authority moved concurrently, escalation is a no-op")
		return
	default:
		logger.Error().Err(err).Msg("Escalation transfer failed, will retry")
		s.reopen(ctx, cycleID, logger)
		return
	}

	if err := s.store.SetFailedOver(ctx, site.ID, cycleID); err != nil {
		logger.Error().Err(err).Msg("Failed to record failover flag")
	}

	secondary, err := s.store.GetStakeholder(ctx, site.SecondaryAuthorityID)
	if err == nil {
		s.notify.Direct(site, secondary, models.PhaseEscalated)
	} else {
		logger.Error().Err(err).Msg("New authority not found for escalated notification")
	}
	s.notify.Direct(site, holder, models.PhaseTimeout)

	logger.Info().
		Str("from", holder.ID).
		Str("to", site.SecondaryAuthorityID).
		Msg("Confirmation window expired, authority escalated to secondary")
}

func (s *Service) reopen(ctx context.Context, cycleID string, logger zerolog.Logger) {
	if err := s.store.ReopenTimer(ctx, cycleID); err != nil {
		logger.Error().Err(err).Msg("Failed to reopen escalation timer for retry")
	}
}
