package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// applyEnv overlays EMFPAGER_* variables onto cfg. A nil environ reads the
// process environment. Unset variables leave their field untouched.
func applyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
