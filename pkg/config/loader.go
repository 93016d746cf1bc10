package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings. All Nova services use
// the NOVA_ prefix for their variables.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"NOVA_HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"NOVA_LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
