package verification

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/escalation"
	"weaponwatch-server-go/internal/services/notify"
	"weaponwatch-server-go/internal/store"
)

var (
	// ErrNoPendingCycle - confirm/dismiss called while the site is quiescent
	ErrNoPendingCycle = errors.New("no pending detection cycle")
	// ErrAcknowledgeRequired - end-event invoked without the secondary confirmation
	ErrAcknowledgeRequired = errors.New("end event requires explicit acknowledgement")
	// ErrNotPermitted - actor lacks the role the operation demands
	ErrNotPermitted = errors.New("actor not permitted for this operation")
)

// StepStatus reports the outcome of one end-event cleanup step.
type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// EndEventResult reports the multi-step end-event cleanup per step, so an
// operator can retry exactly the part that failed instead of being told a
// uniform success or failure.
type EndEventResult struct {
	CamerasReset      StepStatus `json:"cameras_reset"`
	CamerasFlipped    int64      `json:"cameras_flipped"`
	AuthorityReverted StepStatus `json:"authority_reverted"`
	RecordCleared     StepStatus `json:"record_cleared"`
	Notified          StepStatus `json:"notified"`
}

// Complete reports whether every required step either ran or was rightly
// skipped.
func (r *EndEventResult) Complete() bool {
	return r.CamerasReset != StepFailed &&
		r.AuthorityReverted != StepFailed &&
		r.RecordCleared != StepFailed &&
		r.Notified != StepFailed
}

// Service is the human-facing decision point of the workflow: confirm threat,
// declare false alarm, end the active event, and administrative authority
// transfer. Every mutation goes through the store's conditional writes; a
// stale caller loses cleanly and is told so.
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
		logger:     logging.NewServiceLogger(cfg, "verification"),
	}
}

// Confirm marks the pending cycle an active threat. Only the current
// authority may confirm. Repeating a confirm of the same cycle succeeds
// without side effects.
func (s *Service) Confirm(ctx context.Context, siteID, actorID string) (*models.Site, error) {
	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site.Quiescent() {
		return nil, ErrNoPendingCycle
	}
	cycleID := site.CycleID

	site, changed, err := s.store.ConfirmThreat(ctx, siteID, actorID, cycleID)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Idempotent repeat; the first call already did the work.
		return site, nil
	}

	// The transition is durable; timer cancellation and fan-out follow. If
	// cancellation loses a race the escalation re-check sees ActiveEvent
	// and no-ops.
	if _, err := s.escalation.Cancel(ctx, cycleID); err != nil {
		s.logger.Error().Err(err).Str("cycle_id", cycleID).Msg("Failed to cancel confirmation window")
	}

	roster, err := s.store.ListStakeholders(ctx, siteID)
	if err != nil {
		s.logger.Error().Err(err).Str("site_id", siteID).Msg("Confirmed but could not load roster for fan-out")
	} else {
		s.notify.FanOut(site, roster, models.PhaseConfirmed, "")
	}

	s.logger.Info().
		Str("site_id", siteID).
		Str("cycle_id", cycleID).
		Str("actor_id", actorID).
		Msg("Threat confirmed, site is in active event")
	return site, nil
}

// Dismiss declares the pending cycle a false alarm and returns the site to
// idle. Only the current authority holder may dismiss; after an escalation
// that is whoever authority failed over to. Dismissing an idle site is a
// no-op.
func (s *Service) Dismiss(ctx context.Context, siteID, actorID string) (*models.Site, error) {
	before, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	cycleID := before.CycleID

	site, changed, err := s.store.DismissDetection(ctx, siteID, actorID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return site, nil
	}

	if _, err := s.escalation.Cancel(ctx, cycleID); err != nil {
		s.logger.Error().Err(err).Str("cycle_id", cycleID).Msg("Failed to cancel confirmation window")
	}

	roster, err := s.store.ListStakeholders(ctx, siteID)
	if err != nil {
		s.logger.Error().Err(err).Str("site_id", siteID).Msg("Dismissed but could not load roster for fan-out")
	} else {
		// Compose against the pre-dismissal snapshot so the dedup key
		// still carries the cycle identity.
		s.notify.FanOut(before, roster, models.PhaseDismissed, "")
	}

	s.logger.Info().
		Str("site_id", siteID).
		Str("cycle_id", cycleID).
		Str("actor_id", actorID).
		Msg("Detection dismissed as false alarm")
	return site, nil
}

// EndEvent performs the site-wide cleanup after a confirmed event: reset
// every camera, revert authority if it failed over, clear the record, and
// broadcast the resolution. It is destructive, so the caller must pass the
// secondary acknowledgement explicitly. Each step is reported individually
// and the whole operation is retryable; repeating it on an idle site skips
// every step.
func (s *Service) EndEvent(ctx context.Context, siteID, actorID string, acknowledged bool) (*EndEventResult, error) {
	if !acknowledged {
		return nil, ErrAcknowledgeRequired
	}

	actor, err := s.store.GetStakeholder(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.SiteID != siteID {
		return nil, store.ErrCrossSiteTransfer
	}
	if !actor.IsAdministrator && !actor.IsAuthority {
		return nil, ErrNotPermitted
	}

	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	result := &EndEventResult{
		CamerasReset:      StepSkipped,
		AuthorityReverted: StepSkipped,
		RecordCleared:     StepSkipped,
		Notified:          StepSkipped,
	}
	if !site.ActiveEvent {
		// Second invocation on an already-idle site: no camera resets, no
		// transfer, no duplicate notifications.
		return result, nil
	}
	logger := logging.WithCycle(logging.WithSite(s.logger, siteID), site.CycleID)

	// (a) Reset every camera belonging to the site.
	flipped, err := s.store.ResetCameras(ctx, siteID)
	if err != nil {
		logger.Error().Err(err).Msg("End event: camera reset failed")
		result.CamerasReset = StepFailed
		return result, err
	}
	result.CamerasReset = StepDone
	result.CamerasFlipped = flipped

	// (b) Revert authority to the original primary if it failed over.
	if site.FailedOver {
		holder, err := s.store.CurrentAuthority(ctx, siteID)
		if err != nil {
			logger.Error().Err(err).Msg("End event: could not resolve authority for revert")
			result.AuthorityReverted = StepFailed
			return result, err
		}
		if holder.ID != site.PrimaryAuthorityID {
			err = s.store.TransferAuthority(ctx, store.TransferRequest{
				SiteID: siteID,
				FromID: holder.ID,
				ToID:   site.PrimaryAuthorityID,
			})
			if err != nil {
				logger.Error().Err(err).Msg("End event: authority revert failed")
				result.AuthorityReverted = StepFailed
				return result, err
			}
		}
		result.AuthorityReverted = StepDone
	}

	// (c) Clear the record back to quiescent.
	_, changed, err := s.store.ClearSiteRecord(ctx, siteID)
	if err != nil {
		logger.Error().Err(err).Msg("End event: record clear failed")
		result.RecordCleared = StepFailed
		return result, err
	}
	if changed {
		result.RecordCleared = StepDone
	}

	// (d) Broadcast the resolution against the pre-clear snapshot so the
	// dedup key still names the cycle.
	roster, err := s.store.ListStakeholders(ctx, siteID)
	if err != nil {
		logger.Error().Err(err).Msg("End event: roster load failed, resolution not broadcast")
		result.Notified = StepFailed
		return result, err
	}
	s.notify.FanOut(site, roster, models.PhaseResolved, "")
	result.Notified = StepDone

	logger.Info().Str("actor_id", actorID).Int64("cameras_reset", flipped).Msg("Active event ended, site back to idle")
	return result, nil
}

// TransferTarget names the receiving stakeholder by id or, when the caller
// only knows the contact address, by email.
type TransferTarget struct {
	ID    string
	Email string
}

// Transfer hands authority to another stakeholder outside of failure
// escalation. The target must belong to the same site and, matching product
// policy, must be an administrator. Goes through the same atomic primitive
// as automatic failover.
func (s *Service) Transfer(ctx context.Context, siteID, actorID string, to TransferTarget) (*models.Stakeholder, error) {
	var (
		target *models.Stakeholder
		err    error
	)
	if to.ID != "" {
		target, err = s.store.GetStakeholder(ctx, to.ID)
	} else {
		target, err = s.store.GetStakeholderByEmail(ctx, to.Email)
	}
	if err != nil {
		return nil, err
	}

	err = s.store.TransferAuthority(ctx, store.TransferRequest{
		SiteID:             siteID,
		FromID:             actorID,
		ToID:               target.ID,
		MovePrimaryRef:     true,
		RequireAdminTarget: true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("site_id", siteID).
		Str("from", actorID).
		Str("to", target.ID).
		Msg("Verification authority transferred")
	return target, nil
}

// RecordDetection applies an external producer report to the site record.
// A report during a live cycle is dropped (the cycle is already being
// handled); the store write itself emits the changefeed event the Detection
// Watcher reacts to.
func (s *Service) RecordDetection(ctx context.Context, siteID string, report models.DetectionReport) (*models.Site, error) {
	site, err := s.store.RecordDetection(ctx, siteID, report)
	if err != nil {
		if errors.Is(err, store.ErrCycleLive) {
			s.logger.Debug().
				Str("site_id", siteID).
				Str("camera_id", report.CameraID).
				Msg("Detection dropped, cycle already live")
		}
		return nil, err
	}
	return site, nil
}
