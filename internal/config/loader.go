package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional, skipped when missing)
// 3. SCOUT_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, configError("failed to load config file", err)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, configError("failed to bind "+env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, configError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, configError("invalid config", err)
	}

	return cfg, nil
}

// configError tags err with CodeConfig and ErrConfiguration.
func configError(message string, err error) error {
	return apperrors.NewConfigError(message, fmt.Errorf("%w: %w", ErrConfiguration, err))
}

// readConfigFile reads path into v. A missing file is not an error: the
// environment alone is a complete configuration source.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	v.SetConfigFile(path)
	return v.ReadInConfig()
}

// Validate parses derived fields and checks every constraint declared on the
// configuration structs.
func (c *Config) Validate() error {
	ids, err := ParseAdminIDs(c.Telegram.Admins)
	if err != nil {
		return err
	}
	c.Telegram.AdminIDs = ids

	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return nil
}
