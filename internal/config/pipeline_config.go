package config

import (
	"errors"
	"fmt"
	"time"
)

type PipelineConfig struct {
	ScoutInterval         time.Duration `mapstructure:"scout_interval"`
	ScoutConcurrency      int           `mapstructure:"scout_concurrency"`
	NormalizeConcurrency  int           `mapstructure:"normalize_concurrency"`
	FitScoreConcurrency   int           `mapstructure:"fitscore_concurrency"`
	MaterialsConcurrency  int           `mapstructure:"materials_concurrency"`
	ComplianceConcurrency int           `mapstructure:"compliance_concurrency"`
	PostingExpirationDays int           `mapstructure:"posting_expiration_days"`
	TaskRetentionDays     int           `mapstructure:"task_retention_days"`
	MetricsAddress        string        `mapstructure:"metrics_address"`
}

func (config PipelineConfig) validate() error {
	var errs []error

	caps := map[string]int{
		"scout_concurrency":      config.ScoutConcurrency,
		"normalize_concurrency":  config.NormalizeConcurrency,
		"fitscore_concurrency":   config.FitScoreConcurrency,
		"materials_concurrency":  config.MaterialsConcurrency,
		"compliance_concurrency": config.ComplianceConcurrency,
	}
	for name, value := range caps {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%v must be greater than zero", name))
		}
	}

	if config.ScoutInterval <= 0 {
		errs = append(errs, fmt.Errorf("scout_interval must be greater than zero"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
