package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"weaponwatch-server-go/internal/models"
)

// GetSite returns the current site snapshot.
func (s *Store) GetSite(ctx context.Context, siteID string) (*models.Site, error) {
	var site models.Site
	err := s.db.WithContext(ctx).First(&site, "id = ?", siteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// RecordDetection applies the external producer's write: camera id and image
// path land on the site record only when no cycle is live. A detection during
// a live cycle or active event returns ErrCycleLive and changes nothing.
func (s *Store) RecordDetection(ctx context.Context, siteID string, report models.DetectionReport) (*models.Site, error) {
	previous, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !previous.Quiescent() {
		return nil, ErrCycleLive
	}

	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND detected_camera_id = '' AND active_event = ?", siteID, false).
		Updates(map[string]any{
			"detected_camera_id":   report.CameraID,
			"detection_image_path": report.ImagePath,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Another cycle started between the read and the write.
		return nil, ErrCycleLive
	}

	// Mirror the producer's per-camera flag so dashboards agree with the record.
	s.db.WithContext(ctx).Model(&models.Camera{}).
		Where("id = ? AND site_id = ?", report.CameraID, siteID).
		Update("detected", true)

	current, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	s.emit(*previous, *current)
	return current, nil
}

// StampDetection assigns the cycle identity and the server-side DetectedAt
// for a freshly observed detection. The write is conditional on the cycle not
// having been stamped yet, so redelivered change events are no-ops. Returns
// the stamped site and whether this call did the stamping.
func (s *Store) StampDetection(ctx context.Context, siteID, cameraID string) (*models.Site, bool, error) {
	previous, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}

	cycleID := uuid.NewString()
	now := time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND detected_camera_id = ? AND detected_at IS NULL AND active_event = ?", siteID, cameraID, false).
		Updates(map[string]any{
			"cycle_id":    cycleID,
			"detected_at": now,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	current, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	if res.RowsAffected == 0 {
		// Already stamped by a previous delivery of the same change.
		return current, false, nil
	}
	s.emit(*previous, *current)
	return current, true, nil
}

// ConfirmThreat flips the site into the active-event state. Only the current
// authority may confirm, and only while the cycle identified by cycleID is
// still pending. A repeat confirm of an already-active cycle reports
// changed=false and no error.
func (s *Store) ConfirmThreat(ctx context.Context, siteID, actorID, cycleID string) (*models.Site, bool, error) {
	if err := s.requireAuthority(ctx, siteID, actorID); err != nil {
		return nil, false, err
	}

	previous, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}

	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND cycle_id = ? AND detected_camera_id <> '' AND active_event = ?", siteID, cycleID, false).
		Updates(map[string]any{
			"active_event": true,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	current, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	if res.RowsAffected == 0 {
		if current.ActiveEvent && current.CycleID == cycleID {
			// Idempotent repeat of an already-applied confirm.
			return current, false, nil
		}
		return nil, false, ErrConflict
	}
	s.emit(*previous, *current)
	return current, true, nil
}

// DismissDetection declares the pending cycle a false alarm: detection fields
// return to empty, ActiveEvent stays false, the site is idle again. Only the
// current authority holder may dismiss; after a failover that is the
// secondary. Dismissing an already-idle site reports changed=false.
func (s *Store) DismissDetection(ctx context.Context, siteID, actorID string) (*models.Site, bool, error) {
	if err := s.requireAuthority(ctx, siteID, actorID); err != nil {
		return nil, false, err
	}

	previous, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	if previous.Quiescent() {
		return previous, false, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND detected_camera_id <> '' AND active_event = ?", siteID, false).
		Updates(map[string]any{
			"detected_camera_id":   "",
			"detection_image_path": "",
			"detected_at":          nil,
			"cycle_id":             "",
			"failed_over":          false,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, ErrConflict
	}

	current, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	s.emit(*previous, *current)
	return current, true, nil
}

// ClearSiteRecord is the end-event record reset: detection fields, cycle
// identity, FailedOver and ActiveEvent all return to quiescent. Conditional
// on the event still being active so a retry cannot double-apply.
func (s *Store) ClearSiteRecord(ctx context.Context, siteID string) (*models.Site, bool, error) {
	previous, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}

	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND active_event = ?", siteID, true).
		Updates(map[string]any{
			"active_event":         false,
			"detected_camera_id":   "",
			"detection_image_path": "",
			"detected_at":          nil,
			"cycle_id":             "",
			"failed_over":          false,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return previous, false, nil
	}

	current, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	s.emit(*previous, *current)
	return current, true, nil
}

// SetFailedOver marks that authority failed over during the given cycle.
func (s *Store) SetFailedOver(ctx context.Context, siteID, cycleID string) error {
	previous, err := s.GetSite(ctx, siteID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND cycle_id = ?", siteID, cycleID).
		Updates(map[string]any{
			"failed_over": true,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}

	current, err := s.GetSite(ctx, siteID)
	if err != nil {
		return err
	}
	s.emit(*previous, *current)
	return nil
}

// requireAuthority rejects actors that do not currently hold verification
// authority for the site.
func (s *Store) requireAuthority(ctx context.Context, siteID, actorID string) error {
	actor, err := s.GetStakeholder(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.SiteID != siteID {
		return ErrCrossSiteTransfer
	}
	if !actor.IsAuthority {
		return ErrActorNotAuthority
	}
	return nil
}
