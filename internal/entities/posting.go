package entities

import "time"

type PostingStatus string

const (
	StatusDiscovered     PostingStatus = "discovered"
	StatusShortlisted    PostingStatus = "shortlisted"
	StatusArchived       PostingStatus = "archived"
	StatusDrafting       PostingStatus = "drafting"
	StatusReadyForReview PostingStatus = "ready_for_review"
)

// Extraction is the structured blob pulled out of a raw description.
type Extraction struct {
	Requirements     []string `json:"requirements"`
	Responsibilities []string `json:"responsibilities"`
	TechStack        []string `json:"tech_stack"`
}

type Posting struct {
	ID              int
	Source          string
	SourceID        string
	Company         string
	Title           string
	Level           string
	Location        string
	RemoteMode      string
	VisaSponsorship string
	Description     string
	Extracted       Extraction `gorm:"serializer:json"`
	ApplyURL        string
	PostedAt        time.Time
	FitScore        int
	FitReasons      []string `gorm:"serializer:json"`
	RiskFlags       []string `gorm:"serializer:json"`
	Notes           string
	Status          PostingStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
