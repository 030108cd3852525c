package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type AIConfig struct {
	Key                  string  `mapstructure:"key"`
	FastModel            string  `mapstructure:"fast_model"`
	DeepModel            string  `mapstructure:"deep_model"`
	MaxRequestsPerMinute float32 `mapstructure:"max_requests_per_minute"`
	MaxRequestsPerDay    float32 `mapstructure:"max_requests_per_day"`
}

func (config AIConfig) validate() error {
	if config.Key == "" {
		return fmt.Errorf("missing required variable: ai key")
	}
	return nil
}

func (config AIConfig) bindEnvironmentVariables() error {
	return viper.BindEnv("ai.key", "AI_KEY")
}
