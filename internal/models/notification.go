package models

import "fmt"

// Phase identifies which stage of the detection cycle a notification belongs
// to. Message bodies differ by phase and by recipient role.
type Phase string

const (
	// PhasePending - a new detection awaits verification
	PhasePending Phase = "pending"
	// PhaseConfirmed - the authority confirmed an active threat
	PhaseConfirmed Phase = "confirmed"
	// PhaseDismissed - the authority declared a false alarm
	PhaseDismissed Phase = "dismissed"
	// PhaseEscalated - authority failed over to the secondary, sent to the new holder
	PhaseEscalated Phase = "escalated"
	// PhaseTimeout - the confirmation window lapsed, sent to the old holder
	PhaseTimeout Phase = "timeout"
	// PhaseResolved - the active event was ended
	PhaseResolved Phase = "resolved"
)

// String returns the string representation of Phase
func (p Phase) String() string {
	return string(p)
}

// IsValid checks if the phase is one the fan-out knows how to compose.
func (p Phase) IsValid() bool {
	switch p {
	case PhasePending, PhaseConfirmed, PhaseDismissed, PhaseEscalated, PhaseTimeout, PhaseResolved:
		return true
	default:
		return false
	}
}

// PushChannel is the Android notification channel for threat alerts.
const PushChannel = "weapon_detected"

// PushSound is the alarm sound attached to urgent phases.
const PushSound = "emergencysos.wav"

// PushMessage is one composed message ready for the push gateway.
type PushMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Sound    string         `json:"sound,omitempty"`
	Channel  string         `json:"channelId,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Sticky   bool           `json:"sticky,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// DedupKey builds the stable idempotency key for one logical delivery:
// the same (site, cycle, recipient, phase) tuple is sent at most once.
func DedupKey(siteID, cycleID, recipientID string, phase Phase) string {
	return fmt.Sprintf("%s|%s|%s|%s", siteID, cycleID, recipientID, phase)
}
