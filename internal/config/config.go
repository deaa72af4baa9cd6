// Package config loads CLI-wide settings from the environment and an
// optional coldrun.yaml config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Settings are global settings that apply across commands. Command flags
// take precedence over all of these.
type Settings struct {
	// ResultsDir is a default results directory, overriding the manifest's
	// when set. COLDRUN_RESULTS_DIR.
	ResultsDir string `mapstructure:"results_dir"`

	// LogLevel is the CLI log level. COLDRUN_LOG_LEVEL.
	LogLevel string `mapstructure:"log_level"`

	// MailTo is the notification recipient list, comma-separated in the
	// environment. COLDRUN_MAIL_TO. Delivery is external tooling's job;
	// the list is only carried through to the experiment configuration.
	MailTo []string `mapstructure:"mail_to"`
}

// Load reads settings from COLDRUN_* environment variables and, when
// present, a coldrun.yaml file in the working directory.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("COLDRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("results_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("mail_to", []string{})

	v.SetConfigName("coldrun")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	// Environment values arrive as a single comma-separated string.
	if len(s.MailTo) == 1 && strings.Contains(s.MailTo[0], ",") {
		parts := strings.Split(s.MailTo[0], ",")
		s.MailTo = s.MailTo[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				s.MailTo = append(s.MailTo, p)
			}
		}
	}

	return &s, nil
}
