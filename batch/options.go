package batch

import (
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Config holds batch driver parameters.
type Config struct {
	workers int
	logger  logrus.FieldLogger
}

// Option adjusts the batch configuration.
type Option func(*Config)

// DefaultConfig renders with one worker per CPU and discards
// diagnostics.
func DefaultConfig() Config {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return Config{
		workers: runtime.NumCPU(),
		logger:  log,
	}
}

// WithWorkers bounds how many variants render concurrently.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger routes driver and engine diagnostics to the given sink.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Config) {
		if log != nil {
			c.logger = log
		}
	}
}

// ApplyOptions resolves options against the defaults.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
