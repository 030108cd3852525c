package entities

import "time"

type Application struct {
	ID              int
	PostingID       int
	ResumeVersionID int
	CoverLetterRef  string
	QARef           string
	CreatedAt       time.Time
}
