package store

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"weaponwatch-server-go/internal/models"
)

// newTestStore opens an in-memory database with migrations applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	s, err := NewWithDB(db)
	require.NoError(t, err)
	return s
}

func seedSite(t *testing.T, s *Store, site models.Site) {
	t.Helper()
	require.NoError(t, s.db.Create(&site).Error)
}

func seedStakeholder(t *testing.T, s *Store, st models.Stakeholder) {
	t.Helper()
	require.NoError(t, s.db.Create(&st).Error)
}

func seedCamera(t *testing.T, s *Store, cam models.Camera) {
	t.Helper()
	require.NoError(t, s.db.Create(&cam).Error)
}

// seedSchool builds the standard fixture: one site with a primary authority,
// a secondary, an administrator without authority, a staff member without a
// token, and two cameras.
func seedSchool(t *testing.T, s *Store) {
	t.Helper()
	seedSite(t, s, models.Site{
		ID:                   "site-1",
		Name:                 "Northfield High",
		PrimaryAuthorityID:   "primary-1",
		SecondaryAuthorityID: "secondary-1",
	})
	seedStakeholder(t, s, models.Stakeholder{
		ID: "primary-1", SiteID: "site-1", Name: "Pat Monroe",
		Email: "pat@northfield.edu", IsAdministrator: true, IsAuthority: true,
		PushToken: "ExponentPushToken[primary]",
	})
	seedStakeholder(t, s, models.Stakeholder{
		ID: "secondary-1", SiteID: "site-1", Name: "Sam Reyes",
		Email: "sam@northfield.edu", IsAdministrator: true,
		PushToken: "ExponentPushToken[secondary]",
	})
	seedStakeholder(t, s, models.Stakeholder{
		ID: "staff-1", SiteID: "site-1", Name: "Lee Park",
		Email: "lee@northfield.edu",
	})
	seedCamera(t, s, models.Camera{ID: "cam-entrance", SiteID: "site-1", Room: "Main Entrance"})
	seedCamera(t, s, models.Camera{ID: "cam-gym", SiteID: "site-1", Room: "Gymnasium"})
}

// recordingSink captures emitted changefeed events for assertions.
type recordingSink struct {
	changes []models.SiteChange
}

func (r *recordingSink) SiteChanged(change models.SiteChange) {
	r.changes = append(r.changes, change)
}
