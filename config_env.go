package goSession

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every configuration variable, e.g. GOSESSION_BACKEND_URL.
const EnvPrefix = "GOSESSION_"

// ConfigFromEnv starts from [DefaultConfig] and overrides every field whose variable is set.
func ConfigFromEnv() (Config, error) {
	return configFromEnv(env.Options{Prefix: EnvPrefix})
}

func configFromEnv(opts env.Options) (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
