package entities

import "time"

// ResumeVersion is an immutable snapshot of tailored bullets for one application.
type ResumeVersion struct {
	ID             int
	BaseResumeHash string
	TargetRole     string
	Bullets        []string `gorm:"serializer:json"`
	CreatedAt      time.Time
}
