package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds defaults read from CTFTRACE_* environment variables.
// Flags override them.
type EnvConfig struct {
	Port         string        `env:"CTFTRACE_PORT" envDefault:""`
	BaudRate     int           `env:"CTFTRACE_BAUDRATE" envDefault:"0"`
	Decoder      string        `env:"CTFTRACE_DECODER" envDefault:""`
	LogLevel     string        `env:"CTFTRACE_LOG_LEVEL" envDefault:"info"`
	PollInterval time.Duration `env:"CTFTRACE_POLL_INTERVAL" envDefault:"10ms"`
}

// ParseEnvConfig parses CTFTRACE_* variables.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
