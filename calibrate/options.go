package calibrate

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Config holds tunable parameters of the convergence loop.
type Config struct {
	maxIterations int
	tolerance     float64
	analysisRate  int
	logger        logrus.FieldLogger
}

// Option adjusts the calibration configuration.
type Option func(*Config)

// DefaultConfig returns the standard loop parameters: 100 iterations,
// 0.1 phon tolerance, 48 kHz analysis rate, discarded diagnostics.
func DefaultConfig() Config {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return Config{
		maxIterations: 100,
		tolerance:     0.1,
		analysisRate:  48000,
		logger:        log,
	}
}

// WithMaxIterations bounds the number of oracle measurements before
// the loop fails with a ConvergenceError.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithTolerance sets the phon distance accepted as converged.
func WithTolerance(phon float64) Option {
	return func(c *Config) {
		if phon > 0 {
			c.tolerance = phon
		}
	}
}

// WithAnalysisRate sets the sample rate the oracle expects.
func WithAnalysisRate(rate int) Option {
	return func(c *Config) {
		if rate > 0 {
			c.analysisRate = rate
		}
	}
}

// WithLogger routes step-by-step diagnostics to the given sink.
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
