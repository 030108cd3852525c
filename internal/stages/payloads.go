package stages

// PostingTask is the payload for normalize, fitscore and materials tasks.
type PostingTask struct {
	PostingID int `json:"postingId"`
}

// ComplianceTask carries the draft materials forward so verification never
// re-derives what drafting just produced.
type ComplianceTask struct {
	PostingID       int               `json:"postingId"`
	ResumeVersionID int               `json:"resumeVersionId,omitempty"`
	CoverLetter     string            `json:"coverLetter,omitempty"`
	TailoredBullets []string          `json:"tailoredBullets,omitempty"`
	WhyCompany      string            `json:"whyCompany,omitempty"`
	Answers         map[string]string `json:"answers,omitempty"`
}
