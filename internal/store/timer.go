package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"weaponwatch-server-go/internal/models"
)

// CreateTimer persists the confirmation-window deadline for a cycle. Creating
// a timer that already exists is a no-op, so redelivered change events do not
// re-arm a resolved window.
func (s *Store) CreateTimer(ctx context.Context, timer models.EscalationTimer) error {
	err := s.db.WithContext(ctx).Create(&timer).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// GetTimer returns the timer row for a cycle.
func (s *Store) GetTimer(ctx context.Context, cycleID string) (*models.EscalationTimer, error) {
	var t models.EscalationTimer
	err := s.db.WithContext(ctx).First(&t, "cycle_id = ?", cycleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListPendingTimers returns every timer still awaiting resolution, for
// re-arming after a restart and for the expiry sweep.
func (s *Store) ListPendingTimers(ctx context.Context) ([]models.EscalationTimer, error) {
	var timers []models.EscalationTimer
	err := s.db.WithContext(ctx).
		Where("state = ?", models.TimerStatePending).
		Find(&timers).Error
	if err != nil {
		return nil, err
	}
	return timers, nil
}

// ListUnarmedSites returns sites whose stamped cycle has no timer row at all.
// A crash between the detection stamp and the timer write leaves exactly this
// shape behind; the escalation sweep re-arms it.
func (s *Store) ListUnarmedSites(ctx context.Context) ([]models.Site, error) {
	armed := s.db.Model(&models.EscalationTimer{}).Select("cycle_id")
	var sites []models.Site
	err := s.db.WithContext(ctx).
		Where("detected_at IS NOT NULL AND active_event = ?", false).
		Where("cycle_id NOT IN (?)", armed).
		Find(&sites).Error
	if err != nil {
		return nil, err
	}
	return sites, nil
}

// MarkTimerFired flips a pending timer to fired. The flip is conditional, so
// exactly one caller wins when a resolution and an expiry race; everyone else
// sees false and treats the escalation as a no-op.
func (s *Store) MarkTimerFired(ctx context.Context, cycleID string) (bool, error) {
	return s.flipTimer(ctx, cycleID, models.TimerStateFired)
}

// CancelTimer flips a pending timer to cancelled when the cycle resolves
// before expiry. Returns false if the timer already fired or was cancelled.
func (s *Store) CancelTimer(ctx context.Context, cycleID string) (bool, error) {
	return s.flipTimer(ctx, cycleID, models.TimerStateCancelled)
}

// ReopenTimer puts a fired timer back to pending after a transient failure in
// the escalation action, so the sweep retries it.
func (s *Store) ReopenTimer(ctx context.Context, cycleID string) error {
	res := s.db.WithContext(ctx).Model(&models.EscalationTimer{}).
		Where("cycle_id = ? AND state = ?", cycleID, models.TimerStateFired).
		Update("state", models.TimerStatePending)
	return res.Error
}

func (s *Store) flipTimer(ctx context.Context, cycleID string, to models.TimerState) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.EscalationTimer{}).
		Where("cycle_id = ? AND state = ?", cycleID, models.TimerStatePending).
		Updates(map[string]any{
			"state":      to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
