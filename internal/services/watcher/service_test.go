package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/escalation"
	"weaponwatch-server-go/internal/services/notify"
	"weaponwatch-server-go/internal/store"
)

type capturePusher struct {
	mu   sync.Mutex
	sent []models.PushMessage
}

func (c *capturePusher) Push(ctx context.Context, msg models.PushMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *capturePusher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fixture struct {
	store   *store.Store
	watcher *Service
	pusher  *capturePusher
	notify  *notify.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	st, err := store.NewWithDB(db)
	require.NoError(t, err)

	cfg := &config.Config{
		ConfirmWindow:   time.Hour,
		SweepInterval:   time.Hour,
		DedupTTL:        time.Minute,
		DedupSweep:      time.Minute,
		FanoutWorkers:   1,
		NotifyQueueSize: 16,
	}
	pusher := &capturePusher{}
	notifier := notify.NewService(cfg, pusher)
	notifier.Start()
	esc := escalation.NewService(cfg, st, notifier)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = esc.Shutdown(ctx)
		_ = notifier.Shutdown(ctx)
	})

	return &fixture{
		store:   st,
		watcher: NewService(cfg, st, esc, notifier),
		pusher:  pusher,
		notify:  notifier,
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.DB().Create(&models.Site{
		ID:                   "site-1",
		PrimaryAuthorityID:   "primary-1",
		SecondaryAuthorityID: "secondary-1",
	}).Error)
	require.NoError(t, f.store.DB().Create(&models.Stakeholder{
		ID: "primary-1", SiteID: "site-1", IsAuthority: true, IsAdministrator: true,
		PushToken: "ExponentPushToken[primary]",
	}).Error)
	require.NoError(t, f.store.DB().Create(&models.Stakeholder{
		ID: "staff-1", SiteID: "site-1", PushToken: "ExponentPushToken[staff]",
	}).Error)
	require.NoError(t, f.store.DB().Create(&models.Camera{
		ID: "cam-1", SiteID: "site-1", Room: "Entrance",
	}).Error)
}

// record applies a producer detection and returns the resulting change event,
// the way the changefeed would deliver it.
func (f *fixture) record(t *testing.T, cameraID string) models.SiteChange {
	t.Helper()
	ctx := context.Background()
	previous, err := f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)
	current, err := f.store.RecordDetection(ctx, "site-1", models.DetectionReport{CameraID: cameraID})
	require.NoError(t, err)
	return models.SiteChange{Previous: *previous, Current: *current, At: time.Now().UTC()}
}

func TestHandleChangeStampsAndArms(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	change := f.record(t, "cam-1")
	require.NoError(t, f.watcher.HandleChange(ctx, change))

	site, err := f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)
	assert.NotEmpty(t, site.CycleID)
	require.NotNil(t, site.DetectedAt)

	timer, err := f.store.GetTimer(ctx, site.CycleID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatePending, timer.State)
	assert.Equal(t, site.DetectedAt.Add(time.Hour).Unix(), timer.Deadline.Unix())

	// Pending fan-out reached both deliverable stakeholders.
	require.Eventually(t, func() bool { return f.pusher.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestHandleChangeIgnoresRedelivery(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	change := f.record(t, "cam-1")
	require.NoError(t, f.watcher.HandleChange(ctx, change))

	site, err := f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)
	firstCycle := site.CycleID

	// The broker redelivers the same event.
	require.NoError(t, f.watcher.HandleChange(ctx, change))

	site, err = f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, firstCycle, site.CycleID)

	require.Eventually(t, func() bool { return f.pusher.count() == 2 }, time.Second, 10*time.Millisecond)
	// Give any duplicate a moment to land, then assert it did not.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, f.pusher.count())
}

func TestHandleChangeReArmsUnarmedCycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	change := f.record(t, "cam-1")

	// An earlier handler stamped the cycle and then died before the timer
	// write landed.
	site, stamped, err := f.store.StampDetection(ctx, "site-1", "cam-1")
	require.NoError(t, err)
	require.True(t, stamped)
	_, err = f.store.GetTimer(ctx, site.CycleID)
	require.Error(t, err)

	// Redelivery of the same change must restore the confirmation window.
	require.NoError(t, f.watcher.HandleChange(ctx, change))

	timer, err := f.store.GetTimer(ctx, site.CycleID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatePending, timer.State)
	assert.Equal(t, site.DetectedAt.Add(time.Hour).Unix(), timer.Deadline.Unix())
}

func TestHandleChangeIgnoresNonDetectionWrites(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	site, err := f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)

	// A write that does not introduce a new camera id.
	change := models.SiteChange{Previous: *site, Current: *site, At: time.Now().UTC()}
	require.NoError(t, f.watcher.HandleChange(ctx, change))

	got, err := f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)
	assert.Empty(t, got.CycleID)
	assert.Zero(t, f.pusher.count())
}

func TestHandleChangeIgnoresActiveEvent(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	site, err := f.store.GetSite(ctx, "site-1")
	require.NoError(t, err)
	previous := *site
	current := *site
	current.DetectedCameraID = "cam-1"
	current.ActiveEvent = true

	change := models.SiteChange{Previous: previous, Current: current, At: time.Now().UTC()}
	assert.False(t, change.NewDetection())
	require.NoError(t, f.watcher.HandleChange(ctx, change))
	assert.Zero(t, f.pusher.count())
}
