package convolve

import (
	"io"

	"github.com/cwbudde/algo-listening/dsp/window"
	"github.com/sirupsen/logrus"
)

// Config holds rendering parameters.
type Config struct {
	taperDuration float64
	logger        logrus.FieldLogger
}

// Option adjusts the rendering configuration.
type Option func(*Config)

// DefaultConfig returns the standard parameters: a 1/12.5 s tail
// taper and discarded diagnostics.
func DefaultConfig() Config {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return Config{
		taperDuration: window.DefaultTaperDuration,
		logger:        log,
	}
}

// WithTaperDuration overrides the fade-out taper length in seconds.
func WithTaperDuration(seconds float64) Option {
	return func(c *Config) {
		if seconds > 0 {
			c.taperDuration = seconds
		}
	}
}

// WithLogger routes diagnostic stats to the given sink.
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
