package config

import "github.com/spf13/viper"

// NotifierConfig is optional: with an empty token the telegram notifier is
// disabled and human review relies on logs alone.
type NotifierConfig struct {
	TgToken  string `mapstructure:"tg_token"`
	TgChatID int64  `mapstructure:"tg_chat_id"`
}

func (config NotifierConfig) bindEnvironmentVariables() error {
	if err := viper.BindEnv("notifier.tg_token", "TG_TOKEN"); err != nil {
		return err
	}
	return viper.BindEnv("notifier.tg_chat_id", "TG_CHAT_ID")
}
