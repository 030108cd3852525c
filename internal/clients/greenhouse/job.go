package greenhouse

import (
	"encoding/json"
	"fmt"
	"time"
)

type Job struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Location    Location   `json:"location"`
	Content     string     `json:"content"`
	AbsoluteURL string     `json:"absolute_url"`
	UpdatedAt   CustomTime `json:"updated_at"`
}

type Location struct {
	Name string `json:"name"`
}

type CustomTime struct {
	time.Time
}

func (dt *CustomTime) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		// the boards API also emits offsets without a colon
		t, err = time.Parse("2006-01-02T15:04:05-0700", str)
	}
	if err != nil {
		return fmt.Errorf("parsing time %s: %v", str, err)
	}
	dt.Time = t
	return nil
}
