package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
)

// fakePusher records every delivered message.
type fakePusher struct {
	mu   sync.Mutex
	sent []models.PushMessage
}

func (f *fakePusher) Push(ctx context.Context, msg models.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakePusher) messages() []models.PushMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PushMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		DedupTTL:        time.Minute,
		DedupSweep:      time.Minute,
		FanoutWorkers:   2,
		NotifyQueueSize: 32,
	}
}

func newTestService(t *testing.T) (*Service, *fakePusher) {
	t.Helper()
	pusher := &fakePusher{}
	svc := NewService(testConfig(), pusher)
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc, pusher
}

func drain(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}

func TestFanOutOneMessagePerRecipient(t *testing.T) {
	svc, pusher := newTestService(t)
	site := testSite()
	roster := []models.Stakeholder{
		{ID: "admin-1", IsAdministrator: true, IsAuthority: true, PushToken: "ExponentPushToken[a]"},
		{ID: "admin-2", IsAdministrator: true, PushToken: "ExponentPushToken[b]"},
		{ID: "staff-1", PushToken: "ExponentPushToken[c]"},
	}

	svc.FanOut(site, roster, models.PhasePending, "admin-1")
	drain(t, svc)

	got := pusher.messages()
	require.Len(t, got, 3)

	byToken := map[string]models.PushMessage{}
	for _, m := range got {
		byToken[m.To] = m
	}
	assert.Equal(t, "Confirm Active Threat Event", byToken["ExponentPushToken[a]"].Body)
	assert.NotEqual(t, byToken["ExponentPushToken[a]"].Body, byToken["ExponentPushToken[b]"].Body)
}

func TestFanOutSkipsMissingToken(t *testing.T) {
	svc, pusher := newTestService(t)
	site := testSite()
	roster := []models.Stakeholder{
		{ID: "admin-1", PushToken: "ExponentPushToken[a]"},
		{ID: "staff-no-token"},
	}

	svc.FanOut(site, roster, models.PhaseConfirmed, "")
	drain(t, svc)

	require.Len(t, pusher.messages(), 1)
}

func TestFanOutDeduplicatesRepeats(t *testing.T) {
	svc, pusher := newTestService(t)
	site := testSite()
	roster := []models.Stakeholder{
		{ID: "admin-1", PushToken: "ExponentPushToken[a]"},
	}

	// The same logical (site, cycle, recipient, phase) tuple dispatched
	// twice, as a redelivered change event would.
	svc.FanOut(site, roster, models.PhasePending, "admin-1")
	svc.FanOut(site, roster, models.PhasePending, "admin-1")
	drain(t, svc)

	require.Len(t, pusher.messages(), 1)
}

func TestFanOutNewCycleIsNotDeduplicated(t *testing.T) {
	svc, pusher := newTestService(t)
	roster := []models.Stakeholder{
		{ID: "admin-1", PushToken: "ExponentPushToken[a]"},
	}

	first := testSite()
	svc.FanOut(first, roster, models.PhasePending, "admin-1")

	second := testSite()
	second.CycleID = "cycle-2"
	svc.FanOut(second, roster, models.PhasePending, "admin-1")
	drain(t, svc)

	require.Len(t, pusher.messages(), 2)
}

func TestDispatchAfterShutdownIsDropped(t *testing.T) {
	svc, pusher := newTestService(t)
	site := testSite()
	roster := []models.Stakeholder{
		{ID: "admin-1", PushToken: "ExponentPushToken[a]"},
	}
	drain(t, svc)

	// A subscription draining during shutdown can still hand us work after
	// the queue is closed; it must be dropped, never sent.
	svc.FanOut(site, roster, models.PhasePending, "admin-1")
	svc.Direct(site, &models.Stakeholder{ID: "secondary-1", PushToken: "ExponentPushToken[s]"}, models.PhaseEscalated)

	assert.Empty(t, pusher.messages())
}

func TestDirectSendsOnlyToRecipient(t *testing.T) {
	svc, pusher := newTestService(t)
	site := testSite()

	svc.Direct(site, &models.Stakeholder{ID: "secondary-1", PushToken: "ExponentPushToken[s]"}, models.PhaseEscalated)
	drain(t, svc)

	got := pusher.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "SECONDARY VERIFICATION REQUIRED", got[0].Title)
}
