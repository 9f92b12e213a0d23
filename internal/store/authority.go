package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"weaponwatch-server-go/internal/models"
)

// TransferRequest describes one atomic authority handoff.
type TransferRequest struct {
	SiteID string
	FromID string
	ToID   string

	// MovePrimaryRef updates the site's primary authority pointer to the
	// target. Administrative transfers move the designation with the flag;
	// automatic failover leaves the pointers alone and relies on FailedOver.
	MovePrimaryRef bool

	// RequireAdminTarget enforces that the target is an administrator, the
	// rule for administrative transfers. Failover to the designated
	// secondary skips it.
	RequireAdminTarget bool
}

// TransferAuthority changes exactly one site's authority from one stakeholder
// to another. Preconditions are checked and both flag flips applied inside a
// single transaction; on any violation the whole transaction aborts with a
// typed reason and no partial state is ever observable. Manual transfer and
// automatic failover both go through here, so the single-authority invariant
// cannot be bypassed by either path.
func (s *Store) TransferAuthority(ctx context.Context, req TransferRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var from, to models.Stakeholder

		if err := tx.First(&from, "id = ?", req.FromID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStakeholderNotFound
			}
			return err
		}
		if err := tx.First(&to, "id = ?", req.ToID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStakeholderNotFound
			}
			return err
		}

		if from.SiteID != req.SiteID || to.SiteID != req.SiteID || from.SiteID != to.SiteID {
			return ErrCrossSiteTransfer
		}
		if !from.IsAuthority {
			return ErrActorNotAuthority
		}
		if to.IsAuthority {
			return ErrTargetAlreadyAuthority
		}
		if req.RequireAdminTarget && !to.IsAdministrator {
			return ErrTargetNotAdministrator
		}

		// Conditional writes re-assert the preconditions at commit time, so
		// a racing transfer loses cleanly instead of double-applying.
		res := tx.Model(&models.Stakeholder{}).
			Where("id = ? AND site_id = ? AND is_authority = ?", req.FromID, req.SiteID, true).
			Update("is_authority", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		res = tx.Model(&models.Stakeholder{}).
			Where("id = ? AND site_id = ? AND is_authority = ?", req.ToID, req.SiteID, false).
			Update("is_authority", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if req.MovePrimaryRef {
			res = tx.Model(&models.Site{}).
				Where("id = ?", req.SiteID).
				Updates(map[string]any{
					"primary_authority_id": req.ToID,
					"version":              gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrSiteNotFound
			}
		}

		return nil
	})
}

// GetStakeholder looks a stakeholder up by id.
func (s *Store) GetStakeholder(ctx context.Context, id string) (*models.Stakeholder, error) {
	var st models.Stakeholder
	err := s.db.WithContext(ctx).First(&st, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStakeholderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStakeholderByEmail looks a stakeholder up by contact address.
func (s *Store) GetStakeholderByEmail(ctx context.Context, email string) (*models.Stakeholder, error) {
	var st models.Stakeholder
	err := s.db.WithContext(ctx).First(&st, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStakeholderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStakeholders returns the site's full roster in a stable order.
func (s *Store) ListStakeholders(ctx context.Context, siteID string) ([]models.Stakeholder, error) {
	var roster []models.Stakeholder
	err := s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("id").
		Find(&roster).Error
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// CurrentAuthority returns the stakeholder holding authority for the site.
func (s *Store) CurrentAuthority(ctx context.Context, siteID string) (*models.Stakeholder, error) {
	var st models.Stakeholder
	err := s.db.WithContext(ctx).
		First(&st, "site_id = ? AND is_authority = ?", siteID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStakeholderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
