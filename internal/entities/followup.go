package entities

import "time"

type FollowUpStatus string

const FollowUpPending FollowUpStatus = "pending"

type FollowUp struct {
	ID          int
	PostingID   int
	Number      int
	ScheduledAt time.Time
	Status      FollowUpStatus
	CreatedAt   time.Time
}
