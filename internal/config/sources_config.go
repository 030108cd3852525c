package config

import (
	"fmt"
	"time"
)

// SourcesConfig lists the job-board organizations scouted for postings.
type SourcesConfig struct {
	Boards               []string      `mapstructure:"boards"`
	MaxRequestsPerSecond float32       `mapstructure:"max_requests_per_second"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
}

func (config SourcesConfig) validate() error {
	if len(config.Boards) == 0 {
		return fmt.Errorf("missing variable: at least one source board is required")
	}
	return nil
}
