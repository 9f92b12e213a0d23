package models

import "time"

// Camera belongs to a site. The detection pipeline sets Detected upstream;
// this core only reads it and bulk-resets it when an active event ends.
type Camera struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"`
	SiteID string `gorm:"size:64;index" json:"site_id"`

	// Room is the physical zone the camera covers. May be empty for
	// unmapped cameras; consumers must tolerate that.
	Room string `gorm:"size:128" json:"room,omitempty"`

	Detected bool `json:"detected"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DetectionReport is what the external producer submits when a weapon is
// recognized on a camera frame: just the camera and the captured image.
type DetectionReport struct {
	CameraID  string `json:"camera_id" binding:"required"`
	ImagePath string `json:"image_path"`
}
