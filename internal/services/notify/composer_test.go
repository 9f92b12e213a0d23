package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch-server-go/internal/models"
)

func testSite() *models.Site {
	at := time.Now().UTC()
	return &models.Site{
		ID:               "site-1",
		DetectedCameraID: "cam-entrance",
		CycleID:          "cycle-1",
		DetectedAt:       &at,
	}
}

func admin() *models.Stakeholder {
	return &models.Stakeholder{ID: "admin-1", IsAdministrator: true, PushToken: "ExponentPushToken[a]"}
}

func staff() *models.Stakeholder {
	return &models.Stakeholder{ID: "staff-1", PushToken: "ExponentPushToken[s]"}
}

func TestComposePending(t *testing.T) {
	site := testSite()

	addressed, ok := Compose(models.PhasePending, site, admin(), true)
	require.True(t, ok)
	assert.Equal(t, "POTENTIAL THREAT DETECTED", addressed.Title)
	assert.Equal(t, "Confirm Active Threat Event", addressed.Body)
	assert.Equal(t, "emergencysos.wav", addressed.Sound)
	assert.Equal(t, "weapon_detected", addressed.Channel)
	assert.Equal(t, "high", addressed.Priority)
	assert.True(t, addressed.Sticky)
	assert.Equal(t, "screens/verification", addressed.Data["url"])

	other, ok := Compose(models.PhasePending, site, staff(), false)
	require.True(t, ok)
	assert.Equal(t, "POTENTIAL THREAT DETECTED", other.Title)
	assert.NotEqual(t, addressed.Body, other.Body)
}

func TestComposeConfirmedDiffersByRole(t *testing.T) {
	site := testSite()

	forAdmin, ok := Compose(models.PhaseConfirmed, site, admin(), false)
	require.True(t, ok)
	forStaff, ok2 := Compose(models.PhaseConfirmed, site, staff(), false)
	require.True(t, ok2)

	assert.Equal(t, forAdmin.Title, forStaff.Title)
	assert.Contains(t, forAdmin.Body, "officer")
	assert.Contains(t, forStaff.Body, "Shelter")
}

func TestComposeEscalatedAndTimeoutAreDirectOnly(t *testing.T) {
	site := testSite()

	msg, ok := Compose(models.PhaseEscalated, site, admin(), true)
	require.True(t, ok)
	assert.Equal(t, "SECONDARY VERIFICATION REQUIRED", msg.Title)
	assert.Equal(t, "Primary verifier did not respond", msg.Body)

	_, ok = Compose(models.PhaseEscalated, site, staff(), false)
	assert.False(t, ok)

	msg, ok = Compose(models.PhaseTimeout, site, admin(), true)
	require.True(t, ok)
	assert.Equal(t, "VERIFICATION TIMEOUT", msg.Title)
	assert.Equal(t, "Threat control passed to secondary verifier", msg.Body)

	_, ok = Compose(models.PhaseTimeout, site, staff(), false)
	assert.False(t, ok)
}

func TestComposeStandDownPhasesDropUrgency(t *testing.T) {
	site := testSite()

	for _, phase := range []models.Phase{models.PhaseDismissed, models.PhaseResolved} {
		msg, ok := Compose(phase, site, staff(), false)
		require.True(t, ok, phase)
		assert.Empty(t, msg.Sound, phase)
		assert.False(t, msg.Sticky, phase)
	}
}

func TestComposeCarriesCycleIdentity(t *testing.T) {
	site := testSite()
	msg, ok := Compose(models.PhasePending, site, staff(), false)
	require.True(t, ok)
	assert.Equal(t, "site-1", msg.Data["site_id"])
	assert.Equal(t, "cycle-1", msg.Data["cycle_id"])
	assert.Equal(t, "cam-entrance", msg.Data["camera_id"])
}

func TestComposeUnknownPhase(t *testing.T) {
	_, ok := Compose(models.Phase("bogus"), testSite(), staff(), false)
	assert.False(t, ok)
}
