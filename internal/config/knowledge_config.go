package config

type KnowledgeConfig struct {
	Dir string `mapstructure:"dir"`
}
