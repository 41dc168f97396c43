// Package calibrate scales a signal until its perceptually-estimated
// loudness matches a target phon level.
//
// The perceptual loudness model is injected as an Oracle rather than
// imported, so tests can substitute a deterministic stub. The model is
// nonlinear and not analytically invertible; the gain is found by
// fixed-point iteration in the log domain, assuming 20*log10
// proportionality between gain and phon change near the current
// operating point.
package calibrate

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/dsp/resample"
	"github.com/sirupsen/logrus"
)

// refPressure is the standard reference sound pressure in Pa.
const refPressure = 2e-5

// Oracle estimates a time-varying perceptual loudness curve from a
// mono pressure-domain signal at the given analysis rate. The curve's
// mean is mapped into phon by the calibration loop. Oracles must be
// pure so repeated calls with the same signal agree.
type Oracle func(pressure []float64, sampleRate int) ([]float64, error)

// Result carries the outcome of a converged calibration.
type Result struct {
	// Buffer is the input audio scaled by Ratio.
	Buffer *audio.Buffer
	// Ratio is the converged linear scale factor.
	Ratio float64
	// HeadroomDB is the remaining margin to full scale in dB.
	HeadroomDB float64
	// Iterations counts oracle measurements taken.
	Iterations int
}

// ConvergenceError reports that the iteration bound was exhausted
// before the loudness landed within tolerance of the target. No
// partial result accompanies it; an uncalibrated buffer returned as if
// calibrated would be dangerous at listening levels.
type ConvergenceError struct {
	Iterations int
	TargetPhon float64
	LastPhon   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("calibrate: no convergence after %d iterations (at %.2f phon, target %.2f)",
		e.Iterations, e.LastPhon, e.TargetPhon)
}

// Errors returned by Calibrate.
var (
	ErrNilOracle    = errors.New("calibrate: nil loudness oracle")
	ErrEmptyBuffer  = errors.New("calibrate: empty audio buffer")
	ErrOracleOutput = errors.New("calibrate: oracle returned a non-positive loudness curve")
)

// Calibrate finds the scale ratio that brings the perceptual loudness
// of audio to targetPhon and returns the scaled buffer. dbfsToSPL maps
// digital full scale onto absolute SPL: the pressure-domain copy fed
// to the oracle is audio * p0 * 10^(dbfsToSPL/20) with p0 = 20 uPa.
//
// The converged ratio is applied to the original full-scale audio, and
// the scaled result must stay within full scale; a peak above 1.0
// fails with *audio.ClippingError rather than auto-attenuating, so the
// caller's requested absolute level semantics are preserved.
func Calibrate(b *audio.Buffer, oracle Oracle, targetPhon, dbfsToSPL float64, opts ...Option) (*Result, error) {
	if oracle == nil {
		return nil, ErrNilOracle
	}

	if b == nil || b.Frames() == 0 {
		return nil, ErrEmptyBuffer
	}

	cfg := ApplyOptions(opts...)
	log := cfg.logger.WithFields(logrus.Fields{
		"target_phon": targetPhon,
		"dbfs_to_spl": dbfsToSPL,
	})

	// The oracle only operates at its analysis rate, so the mono
	// pressure signal is prepared once and rescaled per iteration.
	mono, err := resample.ToRate(b.Downmix(), b.Rate(), cfg.analysisRate)
	if err != nil {
		return nil, fmt.Errorf("calibrate: preparing analysis signal: %w", err)
	}

	pressureScale := refPressure * math.Pow(10, dbfsToSPL/20)
	pressure := make([]float64, len(mono))

	ratio := 1.0
	lastPhon := math.NaN()

	for iter := 1; iter <= cfg.maxIterations; iter++ {
		gain := pressureScale * ratio
		for i, v := range mono {
			pressure[i] = v * gain
		}

		phon, err := measurePhon(oracle, pressure, cfg.analysisRate)
		if err != nil {
			return nil, err
		}

		lastPhon = phon
		diff := targetPhon - phon

		log.WithFields(logrus.Fields{
			"iteration": iter,
			"phon":      phon,
			"ratio":     ratio,
		}).Debug("loudness step")

		if math.Abs(diff) <= cfg.tolerance {
			return finish(b, ratio, iter, log)
		}

		ratio *= math.Pow(10, diff/20)
	}

	return nil, &ConvergenceError{
		Iterations: cfg.maxIterations,
		TargetPhon: targetPhon,
		LastPhon:   lastPhon,
	}
}

func finish(b *audio.Buffer, ratio float64, iterations int, log logrus.FieldLogger) (*Result, error) {
	scaled := b.Clone().Scale(ratio)

	headroomDB, err := audio.CheckClipping(scaled)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"iterations":  iterations,
		"ratio":       ratio,
		"headroom_db": headroomDB,
	}).Info("calibration converged")

	return &Result{
		Buffer:     scaled,
		Ratio:      ratio,
		HeadroomDB: headroomDB,
		Iterations: iterations,
	}, nil
}

// measurePhon summarizes the oracle's time-varying loudness curve into
// a single phon value: phon = 40 + 10*log2(mean(curve)). The affine
// log transform is empirically calibrated and must not be altered.
func measurePhon(oracle Oracle, pressure []float64, rate int) (float64, error) {
	curve, err := oracle(pressure, rate)
	if err != nil {
		return 0, fmt.Errorf("calibrate: loudness oracle: %w", err)
	}

	if len(curve) == 0 {
		return 0, ErrOracleOutput
	}

	var sum float64
	for _, v := range curve {
		sum += v
	}

	mean := sum / float64(len(curve))
	if mean <= 0 {
		return 0, ErrOracleOutput
	}

	return 40 + 10*math.Log2(mean), nil
}
