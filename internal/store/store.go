package store

import (
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
)

// Typed errors surfaced at operation boundaries. Precondition violations and
// stale-write conflicts are rejected synchronously with no state changed.
var (
	ErrSiteNotFound        = errors.New("site not found")
	ErrStakeholderNotFound = errors.New("stakeholder not found")
	ErrCameraNotFound      = errors.New("camera not found")

	// ErrCycleLive - a new detection arrived while a prior cycle is unresolved
	ErrCycleLive = errors.New("detection cycle still live")
	// ErrConflict - a concurrent writer committed first; the caller must re-read
	ErrConflict = errors.New("stale write conflict")

	ErrActorNotAuthority      = errors.New("actor is not the current authority")
	ErrTargetAlreadyAuthority = errors.New("target is already the authority")
	ErrTargetNotAdministrator = errors.New("target is not an administrator")
	ErrCrossSiteTransfer      = errors.New("cross-site transfer rejected")
)

// ChangeSink receives (previous, current) snapshot pairs after every
// committed site write. Consumers must be idempotent under redelivery.
type ChangeSink interface {
	SiteChanged(change models.SiteChange)
}

// MultiSink delivers each change to several sinks in order.
type MultiSink []ChangeSink

func (m MultiSink) SiteChanged(change models.SiteChange) {
	for _, sink := range m {
		sink.SiteChanged(change)
	}
}

// Store wraps the incident database. All mutation funnels through the
// conditional writes and transactions defined here; no caller performs an
// unguarded read-then-write across site or authority state.
type Store struct {
	db   *gorm.DB
	sink ChangeSink
}

// Open connects to the configured database and runs migrations.
func Open(cfg *config.Config) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DatabaseDSN), gormCfg)
	default:
		db, err = gorm.Open(mysql.Open(cfg.DatabaseDSN), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("Incident store ready")
	return s, nil
}

// NewWithDB wraps an existing gorm handle. Used by tests.
func NewWithDB(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the incident tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Site{},
		&models.Stakeholder{},
		&models.Camera{},
		&models.EscalationTimer{},
	)
}

// SetChangeSink installs the changefeed destination. A nil sink disables
// publishing (tests, or a worker running without messaging).
func (s *Store) SetChangeSink(sink ChangeSink) {
	s.sink = sink
}

func (s *Store) emit(previous, current models.Site) {
	if s.sink == nil {
		return
	}
	s.sink.SiteChanged(models.SiteChange{
		Previous: previous,
		Current:  current,
		At:       time.Now().UTC(),
	})
}

// DB exposes the underlying handle for seeding in tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}
