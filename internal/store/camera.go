package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"weaponwatch-server-go/internal/models"
)

// GetCamera looks a camera up by id within a site.
func (s *Store) GetCamera(ctx context.Context, siteID, cameraID string) (*models.Camera, error) {
	var cam models.Camera
	err := s.db.WithContext(ctx).First(&cam, "id = ? AND site_id = ?", cameraID, siteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCameraNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cam, nil
}

// ListCameras returns every camera belonging to a site.
func (s *Store) ListCameras(ctx context.Context, siteID string) ([]models.Camera, error) {
	var cams []models.Camera
	err := s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("id").
		Find(&cams).Error
	if err != nil {
		return nil, err
	}
	return cams, nil
}

// ResetCameras sets detected=false on every camera of the site. Part of the
// end-event cleanup; returns how many rows actually flipped.
func (s *Store) ResetCameras(ctx context.Context, siteID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Camera{}).
		Where("site_id = ? AND detected = ?", siteID, true).
		Update("detected", false)
	return res.RowsAffected, res.Error
}
