package models

import "time"

// TimerState tracks the lifecycle of one escalation timer row.
type TimerState string

const (
	TimerStatePending   TimerState = "pending"
	TimerStateFired     TimerState = "fired"
	TimerStateCancelled TimerState = "cancelled"
)

// EscalationTimer is the durable record of one confirmation window. Timers
// are re-armed from these rows after a restart, and a periodic sweep fires
// anything whose deadline passed while the process was down. The pending to
// fired flip is conditional, so the escalation action runs at most once per
// cycle.
type EscalationTimer struct {
	CycleID  string `gorm:"primaryKey;size:36" json:"cycle_id"`
	SiteID   string `gorm:"size:64;index" json:"site_id"`
	CameraID string `gorm:"size:64" json:"camera_id"`

	Deadline time.Time  `json:"deadline"`
	State    TimerState `gorm:"size:16;index" json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the deadline has passed.
func (t *EscalationTimer) Expired(now time.Time) bool {
	return !now.Before(t.Deadline)
}
