package notify

import (
	"weaponwatch-server-go/internal/models"
)

// deepLink is the screen the mobile client opens when the push is tapped.
func deepLink(phase models.Phase) string {
	switch phase {
	case models.PhasePending, models.PhaseEscalated:
		return "screens/verification"
	default:
		return "screens/home"
	}
}

// Compose builds the role and phase appropriate message for one recipient.
// Returns ok=false for role/phase combinations that get no message (the
// escalated and timeout phases are authority-to-authority only).
//
// The matrix:
//   - pending: the addressed authority is told to act now, everyone else to
//     await instructions.
//   - confirmed: administrators get officer-response guidance, everyone else
//     shelter guidance.
//   - escalated / timeout: only the distinguished recipient.
//   - dismissed / resolved: identical broadcast to all.
func Compose(phase models.Phase, site *models.Site, recipient *models.Stakeholder, distinguished bool) (models.PushMessage, bool) {
	msg := models.PushMessage{
		To:       recipient.PushToken,
		Sound:    models.PushSound,
		Channel:  models.PushChannel,
		Priority: "high",
		Sticky:   true,
		Data: map[string]any{
			"url":       deepLink(phase),
			"site_id":   site.ID,
			"cycle_id":  site.CycleID,
			"camera_id": site.DetectedCameraID,
			"phase":     phase.String(),
		},
	}

	switch phase {
	case models.PhasePending:
		msg.Title = "POTENTIAL THREAT DETECTED"
		if distinguished {
			msg.Body = "Confirm Active Threat Event"
		} else {
			msg.Body = "Potential threat detected. Await instructions from your administrators."
		}

	case models.PhaseConfirmed:
		msg.Title = "ACTIVE THREAT CONFIRMED"
		if recipient.IsAdministrator {
			msg.Body = "Active threat confirmed. Coordinate officer response and follow lockdown protocol."
		} else {
			msg.Body = "Active threat confirmed. Shelter in place and await further instructions."
		}

	case models.PhaseEscalated:
		if !distinguished {
			return models.PushMessage{}, false
		}
		msg.Title = "SECONDARY VERIFICATION REQUIRED"
		msg.Body = "Primary verifier did not respond"

	case models.PhaseTimeout:
		if !distinguished {
			return models.PushMessage{}, false
		}
		msg.Title = "VERIFICATION TIMEOUT"
		msg.Body = "Threat control passed to secondary verifier"

	case models.PhaseDismissed:
		msg.Title = "FALSE ALARM"
		msg.Body = "The alert was declared a false alarm. Stand down."
		msg.Sound = ""
		msg.Sticky = false

	case models.PhaseResolved:
		msg.Title = "ALL CLEAR"
		msg.Body = "The active event has ended. Normal operations may resume."
		msg.Sound = ""
		msg.Sticky = false

	default:
		return models.PushMessage{}, false
	}

	return msg, true
}
