package events

var PostingReadyForReviewTopic = "PostingReadyForReviewEvent"

type PostingReadyForReview struct {
	PostingID int
	Company   string
	Title     string
	URL       string
}

var ComplianceFailedTopic = "ComplianceFailedEvent"

type ComplianceFailed struct {
	PostingID int
	Company   string
	Title     string
	Flags     []string
}
