package escalation

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

func (c *capturePusher) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, m.Title)
	}
	return out
}

func testConfig(window time.Duration) *config.Config {
	return &config.Config{
		ConfirmWindow:   window,
		SweepInterval:   50 * time.Millisecond,
		DedupTTL:        time.Minute,
		DedupSweep:      time.Minute,
		FanoutWorkers:   1,
		NotifyQueueSize: 16,
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	s, err := store.NewWithDB(db)
	require.NoError(t, err)
	return s
}

// seedPendingCycle stores a site with a stamped pending cycle and returns it.
func seedPendingCycle(t *testing.T, st *store.Store, secondaryID string) *models.Site {
	t.Helper()
	require.NoError(t, st.DB().Create(&models.Site{
		ID:                   "site-1",
		PrimaryAuthorityID:   "primary-1",
		SecondaryAuthorityID: secondaryID,
	}).Error)
	require.NoError(t, st.DB().Create(&models.Stakeholder{
		ID: "primary-1", SiteID: "site-1", IsAuthority: true, IsAdministrator: true,
		PushToken: "ExponentPushToken[primary]",
	}).Error)
	require.NoError(t, st.DB().Create(&models.Stakeholder{
		ID: "secondary-1", SiteID: "site-1", IsAdministrator: true,
		PushToken: "ExponentPushToken[secondary]",
	}).Error)

	ctx := context.Background()
	_, err := st.RecordDetection(ctx, "site-1", models.DetectionReport{CameraID: "cam-1"})
	require.NoError(t, err)
	site, stamped, err := st.StampDetection(ctx, "site-1", "cam-1")
	require.NoError(t, err)
	require.True(t, stamped)
	return site
}

func newTestService(t *testing.T, st *store.Store, window time.Duration) (*Service, *capturePusher) {
	t.Helper()
	cfg := testConfig(window)
	pusher := &capturePusher{}
	notifier := notify.NewService(cfg, pusher)
	notifier.Start()
	svc := NewService(cfg, st, notifier)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
		_ = notifier.Shutdown(ctx)
	})
	return svc, pusher
}

func TestExpiryTransfersToSecondary(t *testing.T) {
	st := newTestStore(t)
	site := seedPendingCycle(t, st, "secondary-1")
	svc, pusher := newTestService(t, st, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, site))

	require.Eventually(t, func() bool {
		holder, err := st.CurrentAuthority(ctx, "site-1")
		return err == nil && holder.ID == "secondary-1"
	}, 2*time.Second, 10*time.Millisecond)

	got, err := st.GetSite(ctx, "site-1")
	require.NoError(t, err)
	assert.True(t, got.FailedOver)
	// The designated primary pointer does not move on failover.
	assert.Equal(t, "primary-1", got.PrimaryAuthorityID)
	// The cycle itself stays pending for the secondary to resolve.
	assert.Equal(t, site.CycleID, got.CycleID)
	assert.False(t, got.ActiveEvent)

	timer, err := st.GetTimer(ctx, site.CycleID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStateFired, timer.State)

	// Both sides were told: the new holder and the old one.
	require.Eventually(t, func() bool { return len(pusher.titles()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"SECONDARY VERIFICATION REQUIRED", "VERIFICATION TIMEOUT"}, pusher.titles())
}

func TestCancelBeforeExpiry(t *testing.T) {
	st := newTestStore(t)
	site := seedPendingCycle(t, st, "secondary-1")
	svc, pusher := newTestService(t, st, time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, site))

	cancelled, err := svc.Cancel(ctx, site.CycleID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	holder, err := st.CurrentAuthority(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "primary-1", holder.ID)
	assert.Empty(t, pusher.titles())
}

func TestExpiryWithoutSecondaryIsSkipped(t *testing.T) {
	st := newTestStore(t)
	site := seedPendingCycle(t, st, "")
	svc, pusher := newTestService(t, st, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, site))

	require.Eventually(t, func() bool {
		timer, err := st.GetTimer(ctx, site.CycleID)
		return err == nil && timer.State == models.TimerStateFired
	}, 2*time.Second, 10*time.Millisecond)

	holder, err := st.CurrentAuthority(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "primary-1", holder.ID)
	assert.Empty(t, pusher.titles())
}

func TestExpiryAfterConfirmIsNoop(t *testing.T) {
	st := newTestStore(t)
	site := seedPendingCycle(t, st, "secondary-1")
	svc, pusher := newTestService(t, st, 150*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, site))

	// The authority confirms before the window lapses but the timer flip
	// races: the fire path must see ActiveEvent and stand down.
	_, _, err := st.ConfirmThreat(ctx, "site-1", "primary-1", site.CycleID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		timer, err := st.GetTimer(ctx, site.CycleID)
		return err == nil && timer.State != models.TimerStatePending
	}, 2*time.Second, 10*time.Millisecond)

	holder, err := st.CurrentAuthority(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "primary-1", holder.ID)
	assert.Empty(t, pusher.titles())
}

func TestStartReArmsPersistedTimers(t *testing.T) {
	st := newTestStore(t)
	site := seedPendingCycle(t, st, "secondary-1")
	ctx := context.Background()

	// A deadline that lapsed while the process was down.
	require.NoError(t, st.CreateTimer(ctx, models.EscalationTimer{
		CycleID:  site.CycleID,
		SiteID:   site.ID,
		CameraID: site.DetectedCameraID,
		Deadline: time.Now().UTC().Add(-time.Second),
		State:    models.TimerStatePending,
	}))

	svc, _ := newTestService(t, st, 20*time.Second)
	require.NoError(t, svc.Start(ctx))

	require.Eventually(t, func() bool {
		holder, err := st.CurrentAuthority(ctx, "site-1")
		return err == nil && holder.ID == "secondary-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartArmsOrphanedCycle(t *testing.T) {
	st := newTestStore(t)

	// A stamped cycle with no timer row at all: the previous process died
	// between the stamp and the timer write.
	site := seedPendingCycle(t, st, "secondary-1")
	ctx := context.Background()
	_, err := st.GetTimer(ctx, site.CycleID)
	require.Error(t, err)

	svc, _ := newTestService(t, st, 20*time.Millisecond)
	require.NoError(t, svc.Start(ctx))

	require.Eventually(t, func() bool {
		holder, err := st.CurrentAuthority(ctx, "site-1")
		return err == nil && holder.ID == "secondary-1"
	}, 2*time.Second, 10*time.Millisecond)

	timer, err := st.GetTimer(ctx, site.CycleID)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStateFired, timer.State)
}

func TestArmRequiresStampedCycle(t *testing.T) {
	st := newTestStore(t)
	svc, _ := newTestService(t, st, time.Second)

	err := svc.Arm(context.Background(), &models.Site{ID: "site-1"})
	assert.Error(t, err)
}
