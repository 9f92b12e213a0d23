package models

import (
	"time"
)

// SitePhase represents where a site currently is in the detection cycle
type SitePhase string

const (
	SitePhaseIdle    SitePhase = "idle"
	SitePhasePending SitePhase = "pending"
	SitePhaseActive  SitePhase = "active"
)

// String returns the string representation of SitePhase
func (p SitePhase) String() string {
	return string(p)
}

// Site is the shared incident record for one institution. It is the single
// source of truth the escalation workflow reads and mutates. Every write goes
// through a compare-and-set on Version so a stale reader can never apply a
// transition twice.
type Site struct {
	ID   string `gorm:"primaryKey;size:64" json:"id"`
	Name string `gorm:"size:255" json:"name"`

	// Detection state, written by the external producer and cleared by the
	// verification workflow. DetectedAt is server-stamped only.
	ActiveEvent        bool       `json:"active_event"`
	DetectedCameraID   string     `gorm:"size:64" json:"detected_camera_id"`
	DetectionImagePath string     `gorm:"size:512" json:"detection_image_path"`
	DetectedAt         *time.Time `json:"detected_at,omitempty"`

	// CycleID identifies the live detection cycle. Empty when quiescent.
	CycleID string `gorm:"size:36" json:"cycle_id,omitempty"`

	// FailedOver is set when the escalation timer moved authority from the
	// primary to the secondary during the current cycle.
	FailedOver bool `json:"failed_over"`

	PrimaryAuthorityID   string `gorm:"size:64" json:"primary_authority_id"`
	SecondaryAuthorityID string `gorm:"size:64" json:"secondary_authority_id"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase derives the state-machine position from the stored fields.
func (s *Site) Phase() SitePhase {
	switch {
	case s.ActiveEvent:
		return SitePhaseActive
	case s.DetectedCameraID != "":
		return SitePhasePending
	default:
		return SitePhaseIdle
	}
}

// Quiescent reports whether the site has no live detection cycle.
func (s *Site) Quiescent() bool {
	return s.DetectedCameraID == "" && !s.ActiveEvent
}

// RemainingWindow computes the confirmation time left from the server-stamped
// DetectedAt. Late joiners recompute from this, never from a local clock.
func (s *Site) RemainingWindow(window time.Duration, now time.Time) time.Duration {
	if s.DetectedAt == nil {
		return 0
	}
	remaining := window - now.Sub(*s.DetectedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SiteChange is one changefeed event: the snapshot before and after a
// committed write. Watchers must stay idempotent under redelivery.
type SiteChange struct {
	Previous Site      `json:"previous"`
	Current  Site      `json:"current"`
	At       time.Time `json:"at"`
}

// NewDetection reports whether this change introduces a genuinely new
// detection: the camera id changed to a non-empty value while no event is
// active. A repeated write of the same camera id never triggers.
func (c *SiteChange) NewDetection() bool {
	return c.Current.DetectedCameraID != "" &&
		c.Current.DetectedCameraID != c.Previous.DetectedCameraID &&
		!c.Current.ActiveEvent
}
