package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config.yaml next to the binary; absence is fine.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// OUTREACH_SERVER_PORT -> server.port, etc.
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults establishes the defaults for everything that has a sensible one.
// Secrets and the database URL deliberately have none.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.read_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("sequence.bulk_per_entity_timeout_millis", 2000)
}

// bindEnvKeys registers every config key with viper so AutomaticEnv picks
// up variables for keys that have no default and appear in no file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port",
		"server.log_level",
		"server.read_timeout_seconds",
		"server.write_timeout_seconds",
		"database.url",
		"auth.jwt_secret",
		"sequence.bulk_per_entity_timeout_millis",
	}
	for _, key := range keys {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key)
	}
}
