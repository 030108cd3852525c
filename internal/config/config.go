package config

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	DB        DBConfig        `mapstructure:"db"`
	AI        AIConfig        `mapstructure:"ai"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
}

var configFile = "./configs/config.yaml"

func Get() *Config {

	if value, ok := os.LookupEnv("CONFIG_PATH"); ok {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	viper.SetConfigFile(file)
	viper.AutomaticEnv()

	setDefaults()

	err := bindEnvironmentVariables()
	if err != nil {
		return nil, err
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	config := Config{}
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("pipeline.scout_interval", "6h")
	viper.SetDefault("pipeline.scout_concurrency", 1)
	viper.SetDefault("pipeline.normalize_concurrency", 5)
	viper.SetDefault("pipeline.fitscore_concurrency", 3)
	viper.SetDefault("pipeline.materials_concurrency", 2)
	viper.SetDefault("pipeline.compliance_concurrency", 3)
	viper.SetDefault("pipeline.posting_expiration_days", 30)
	viper.SetDefault("pipeline.task_retention_days", 7)
	viper.SetDefault("pipeline.metrics_address", ":8080")
	viper.SetDefault("sources.max_requests_per_second", 2)
	viper.SetDefault("sources.fetch_timeout", "15s")
	viper.SetDefault("ai.fast_model", "gemini-1.5-flash")
	viper.SetDefault("ai.deep_model", "gemini-1.5-pro")
	viper.SetDefault("knowledge.dir", "./configs/knowledge")
}

func bindEnvironmentVariables() error {
	var errs []error

	ai, db, logger, notifier := AIConfig{}, DBConfig{}, LoggerConfig{}, NotifierConfig{}

	if err := ai.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("AIConfig: %w", err))
	}

	if err := db.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := logger.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := notifier.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("NotifierConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.AI.validate(); err != nil {
		errs = append(errs, fmt.Errorf("AIConfig: %w", err))
	}

	if err := config.Sources.validate(); err != nil {
		errs = append(errs, fmt.Errorf("SourcesConfig: %w", err))
	}

	if err := config.Pipeline.validate(); err != nil {
		errs = append(errs, fmt.Errorf("PipelineConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
