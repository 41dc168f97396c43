// Package norm provides the interchangeable level-setting strategies
// used when preparing listening-test stimuli.
//
// Every strategy shares one contract: measure a reference signal,
// derive a single scale factor for the requested target, and multiply
// the full buffer by it. The reference defaults to the audio itself
// and exists so that a prefiltered copy can drive the measurement
// while the returned audio stays unfiltered. Strategies are pure and
// never clip-correct; callers enforce headroom via audio.CheckClipping
// where required.
package norm

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/measure/loudness"
)

// Mode selects a normalization strategy.
type Mode string

const (
	ModeNone  Mode = "none"
	ModePeak  Mode = "peak"
	ModeRMS   Mode = "rms"
	ModeLUFS  Mode = "lufs"
	ModeIRSum Mode = "ir_sum"
)

// Prefilter selects the measurement prefilter applied to the reference
// copy before a strategy measures it.
type Prefilter string

const (
	PrefilterNone     Prefilter = "none"
	PrefilterHighpass Prefilter = "highpass"
	PrefilterLowpass  Prefilter = "lowpass"
)

// Spec bundles a strategy selection with its target level. Target is
// dBFS for peak/rms, dB for ir_sum, and LUFS for lufs; it is
// meaningless for ModeNone.
type Spec struct {
	Mode              Mode
	Target            float64
	Prefilter         Prefilter
	PrefilterCutoffHz float64
}

// Errors returned by normalization strategies.
var (
	ErrUnknownMode      = errors.New("norm: unknown normalization mode")
	ErrUnknownPrefilter = errors.New("norm: unknown prefilter type")
	ErrSilentReference  = errors.New("norm: reference signal is silent")
	ErrReferenceLength  = errors.New("norm: reference frame count differs from audio")
	ErrNilIR            = errors.New("norm: ir_sum normalization needs an impulse response")
)

// Valid reports whether the mode names a known strategy.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModePeak, ModeRMS, ModeLUFS, ModeIRSum:
		return true
	}

	return false
}

// Valid reports whether the prefilter names a known type. The empty
// string is accepted as PrefilterNone.
func (p Prefilter) Valid() bool {
	switch p {
	case "", PrefilterNone, PrefilterHighpass, PrefilterLowpass:
		return true
	}

	return false
}

// Peak scales audio so the reference's absolute peak lands on targetDB
// (dBFS). Returns a new buffer and the applied factor.
func Peak(b *audio.Buffer, targetDB float64, reference *audio.Buffer) (*audio.Buffer, float64, error) {
	reference, err := resolveReference(b, reference)
	if err != nil {
		return nil, 0, err
	}

	peak := reference.MaxAbs()
	if peak == 0 {
		return nil, 0, ErrSilentReference
	}

	factor := math.Pow(10, targetDB/20) / peak

	return b.Clone().Scale(factor), factor, nil
}

// RMS scales audio so the reference's root-mean-square lands on
// targetDB (dBFS). Returns a new buffer and the applied factor.
func RMS(b *audio.Buffer, targetDB float64, reference *audio.Buffer) (*audio.Buffer, float64, error) {
	reference, err := resolveReference(b, reference)
	if err != nil {
		return nil, 0, err
	}

	rms := reference.RMS()
	if rms == 0 {
		return nil, 0, ErrSilentReference
	}

	factor := math.Pow(10, targetDB/20) / rms

	return b.Clone().Scale(factor), factor, nil
}

// LUFS scales audio so the reference's gated integrated loudness lands
// on target (LUFS). Returns a new buffer and the applied factor.
func LUFS(b *audio.Buffer, target float64, reference *audio.Buffer) (*audio.Buffer, float64, error) {
	reference, err := resolveReference(b, reference)
	if err != nil {
		return nil, 0, err
	}

	channels := make([][]float64, reference.Channels())
	for ch := range channels {
		channels[ch] = reference.Channel(ch)
	}

	measured := loudness.Integrated(channels, float64(reference.Rate()))
	if math.IsInf(measured, -1) {
		return nil, 0, ErrSilentReference
	}

	factor := math.Pow(10, (target-measured)/20)

	return b.Clone().Scale(factor), factor, nil
}

// IRSum scales audio relative to the energy of the impulse response it
// was convolved with: factor = 10^(target/20) / sum(|ir|). Unlike the
// other strategies the measurement input is the IR, not the audio.
func IRSum(b *audio.Buffer, targetDB float64, ir *audio.Buffer) (*audio.Buffer, float64, error) {
	if ir == nil {
		return nil, 0, ErrNilIR
	}

	sum := ir.AbsSum()
	if sum == 0 {
		return nil, 0, ErrSilentReference
	}

	factor := math.Pow(10, targetDB/20) / sum

	return b.Clone().Scale(factor), factor, nil
}

// Apply dispatches to the strategy named by spec.Mode. reference may be
// nil (the audio measures itself); ir is only consulted for ModeIRSum.
// ModeNone returns the input buffer unscaled with factor 1.
func Apply(b *audio.Buffer, spec Spec, reference, ir *audio.Buffer) (*audio.Buffer, float64, error) {
	switch spec.Mode {
	case ModeNone, "":
		return b, 1, nil
	case ModePeak:
		return Peak(b, spec.Target, reference)
	case ModeRMS:
		return RMS(b, spec.Target, reference)
	case ModeLUFS:
		return LUFS(b, spec.Target, reference)
	case ModeIRSum:
		return IRSum(b, spec.Target, ir)
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownMode, spec.Mode)
	}
}

// StepLevel applies the accumulated level of an adaptive run and steps
// it by stepDB in the requested direction: the buffer is scaled by
// 10^(lastDB/20) and then by 10^(±stepDB/20). Returns the mutated
// buffer and the new accumulated level in dB.
func StepLevel(b *audio.Buffer, up bool, lastDB, stepDB float64) (*audio.Buffer, float64) {
	next := lastDB - stepDB
	if up {
		next = lastDB + stepDB
	}

	b.ApplyGain(next)

	return b, next
}

func resolveReference(b, reference *audio.Buffer) (*audio.Buffer, error) {
	if reference == nil {
		return b, nil
	}

	if reference.Frames() != b.Frames() {
		return nil, ErrReferenceLength
	}

	return reference, nil
}
