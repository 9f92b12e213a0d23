package models

import "time"

// Stakeholder is a person tied to exactly one site: an administrator, staff
// member, or the designated verification authority. IsAuthority is never
// written directly; every change funnels through the atomic transfer
// primitive so at most one stakeholder per site holds it.
type Stakeholder struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"`
	SiteID string `gorm:"size:64;index" json:"site_id"`
	Name   string `gorm:"size:255" json:"name"`
	Email  string `gorm:"size:255;index" json:"email"`

	IsAdministrator bool `json:"is_administrator"`
	IsAuthority     bool `json:"is_authority"`

	// PushToken is the delivery token for the push gateway. Stakeholders
	// without a token are silently skipped during fan-out.
	PushToken string `gorm:"size:255" json:"push_token,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deliverable reports whether the stakeholder can receive push messages.
func (s *Stakeholder) Deliverable() bool {
	return s.PushToken != ""
}
