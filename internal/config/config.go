// Package config loads service settings from an optional config file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/kv"
)

// EnvPrefix namespaces environment overrides, e.g. FILMLOC_LOGLEVEL.
const EnvPrefix = "FILMLOC"

// ContentConfig extends the client settings with the list field set.
type ContentConfig struct {
	content.Config `mapstructure:",squash"`
	ListFields     string `mapstructure:"listFields"`
}

// MapConfig controls marker reconciliation.
type MapConfig struct {
	FullReplace bool `mapstructure:"fullReplace"`
}

// SessionConfig controls session lifetime and notifications.
type SessionConfig struct {
	MaxIdle       time.Duration `mapstructure:"maxIdle"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
	NotifyWindow  time.Duration `mapstructure:"notifyWindow"`
	SecureCookie  bool          `mapstructure:"secureCookie"`
}

// Config is the full service configuration.
type Config struct {
	LogLevel  string        `mapstructure:"logLevel"`
	LogFormat string        `mapstructure:"logFormat"`
	Content   ContentConfig `mapstructure:"content"`
	Storage   kv.Config     `mapstructure:"storage"`
	Map       MapConfig     `mapstructure:"map"`
	Session   SessionConfig `mapstructure:"session"`
	Metrics   bool          `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "console")

	v.SetDefault("content.endpoint", "")
	v.SetDefault("content.token", "")
	v.SetDefault("content.timeout", "30s")
	v.SetDefault("content.listFields", string(content.FieldsFull))

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.keyPrefix", "filmloc:")
	v.SetDefault("storage.redis.dialTimeout", "5s")

	v.SetDefault("map.fullReplace", true)

	v.SetDefault("session.maxIdle", "24h")
	v.SetDefault("session.sweepInterval", "10m")
	v.SetDefault("session.notifyWindow", "3s")
	v.SetDefault("session.secureCookie", false)

	v.SetDefault("metrics", true)
}

// Load reads configuration. path names a YAML or JSON file; when empty a
// file called filmloc.{yaml,json} is looked up in the working directory
// and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("content.endpoint", "HYGRAPH_ENDPOINT", EnvPrefix+"_CONTENT_ENDPOINT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("content.token", "HYGRAPH_TOKEN", EnvPrefix+"_CONTENT_TOKEN"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("filmloc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}
