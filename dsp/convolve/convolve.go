// Package convolve renders listening-test stimuli by convolving a
// stimulus with a measured impulse response.
//
// The engine matches the IR to the stimulus rate (the stimulus is the
// fixed asset and is never resampled), optionally tapers the IR tail,
// performs full linear convolution per channel, and applies one
// normalization strategy to the result. A Butterworth prefilter may
// shape the measurement copy driving the normalization without ever
// touching the returned audio.
package convolve

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/dsp/filter"
	"github.com/cwbudde/algo-listening/dsp/resample"
	"github.com/cwbudde/algo-listening/dsp/window"
	"github.com/cwbudde/algo-listening/norm"
	"github.com/sirupsen/logrus"
)

// prefilterOrder is the Butterworth order of the measurement prefilter.
const prefilterOrder = 12

// Errors returned by the convolution engine.
var (
	ErrEmptyIR         = errors.New("convolve: empty impulse response")
	ErrEmptyStimulus   = errors.New("convolve: empty stimulus")
	ErrChannelMismatch = errors.New("convolve: channel counts incompatible beyond mono broadcast")
	ErrInvalidCutoff   = errors.New("convolve: prefilter cutoff outside (0, rate/2)")
)

// Render convolves stimulus with ir and returns the normalized result
// at the stimulus sample rate. The output holds the full linear
// convolution, ir.Frames() + stimulus.Frames() - 1 frames per channel;
// truncation is a caller concern. fadeOut tapers the IR tail before
// convolution. Neither input is mutated.
//
// Channel pairing: equal counts convolve pairwise; a mono IR
// broadcasts over all stimulus channels and a mono stimulus over all
// IR channels. Anything else fails with ErrChannelMismatch.
func Render(ir *audio.ImpulseResponse, stimulus *audio.Buffer, fadeOut bool, spec norm.Spec, opts ...Option) (*audio.Buffer, error) {
	if ir == nil || ir.Buffer == nil || ir.Frames() == 0 {
		return nil, ErrEmptyIR
	}

	if stimulus == nil || stimulus.Frames() == 0 {
		return nil, ErrEmptyStimulus
	}

	if !spec.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", norm.ErrUnknownMode, spec.Mode)
	}

	if !spec.Prefilter.Valid() {
		return nil, fmt.Errorf("%w: %q", norm.ErrUnknownPrefilter, spec.Prefilter)
	}

	cfg := ApplyOptions(opts...)

	kernel, err := prepareKernel(ir.Buffer, stimulus.Rate(), fadeOut, cfg.taperDuration)
	if err != nil {
		return nil, err
	}

	result, err := convolveChannels(kernel, stimulus)
	if err != nil {
		return nil, err
	}

	reference, err := measurementReference(result, spec)
	if err != nil {
		return nil, err
	}

	final, factor, err := norm.Apply(result, spec, reference, kernel)
	if err != nil {
		return nil, fmt.Errorf("convolve: normalizing result: %w", err)
	}

	stats := audio.Measure(final)
	log := cfg.logger.WithFields(logrus.Fields{
		"variant":     ir.Variant,
		"peak_dbfs":   stats.PeakDB,
		"rms_dbfs":    stats.RMSDB,
		"lufs":        stats.Loudness,
		"norm_mode":   string(spec.Mode),
		"norm_factor": factor,
		"frames":      final.Frames(),
	})
	log.Debug("rendered stimulus")

	// Advisory only: direct normalization keeps the caller's requested
	// absolute level even when it overflows full scale.
	if stats.PeakDB > 0 {
		log.Warn("rendered stimulus exceeds full scale")
	}

	return final, nil
}

// prepareKernel brings the IR to the stimulus rate and applies the
// optional tail taper, cloning so the caller's IR survives untouched.
func prepareKernel(ir *audio.Buffer, rate int, fadeOut bool, taperDuration float64) (*audio.Buffer, error) {
	kernel, err := resample.Match(ir, rate)
	if err != nil {
		return nil, fmt.Errorf("convolve: matching impulse response rate: %w", err)
	}

	if !fadeOut {
		return kernel, nil
	}

	if kernel == ir {
		kernel = ir.Clone()
	}

	return window.TaperTail(kernel, taperDuration), nil
}

func convolveChannels(kernel, stimulus *audio.Buffer) (*audio.Buffer, error) {
	irCh := kernel.Channels()
	stCh := stimulus.Channels()

	var outCh int
	switch {
	case irCh == stCh:
		outCh = irCh
	case irCh == 1:
		outCh = stCh
	case stCh == 1:
		outCh = irCh
	default:
		return nil, fmt.Errorf("%w: ir has %d channels, stimulus %d", ErrChannelMismatch, irCh, stCh)
	}

	frames := kernel.Frames() + stimulus.Frames() - 1
	channels := make([][]float64, outCh)

	conv, err := newConvolver(kernel.Frames(), stimulus.Frames())
	if err != nil {
		return nil, err
	}

	for ch := 0; ch < outCh; ch++ {
		k := kernel.Channel(min(ch, irCh-1))
		s := stimulus.Channel(min(ch, stCh-1))

		out, err := conv.full(s, k)
		if err != nil {
			return nil, err
		}

		channels[ch] = out
	}

	out, err := audio.FromChannels(channels, stimulus.Rate())
	if err != nil {
		return nil, err
	}

	if out.Frames() != frames {
		return nil, fmt.Errorf("convolve: internal length mismatch: got %d frames, want %d", out.Frames(), frames)
	}

	return out, nil
}

// measurementReference builds the prefiltered copy a strategy measures
// instead of the audible result. Returns nil when no prefilter is
// requested, which makes strategies measure the result itself.
func measurementReference(result *audio.Buffer, spec norm.Spec) (*audio.Buffer, error) {
	if spec.Prefilter == norm.PrefilterNone || spec.Prefilter == "" {
		return nil, nil
	}

	rate := float64(result.Rate())
	cutoff := spec.PrefilterCutoffHz
	if cutoff <= 0 || cutoff >= rate/2 {
		return nil, fmt.Errorf("%w: %v Hz at %v Hz", ErrInvalidCutoff, cutoff, result.Rate())
	}

	var design func(freq float64, order int, sampleRate float64) []filter.Coefficients
	switch spec.Prefilter {
	case norm.PrefilterHighpass:
		design = filter.ButterworthHP
	case norm.PrefilterLowpass:
		design = filter.ButterworthLP
	default:
		return nil, fmt.Errorf("%w: %q", norm.ErrUnknownPrefilter, spec.Prefilter)
	}

	channels := make([][]float64, result.Channels())
	for ch := range channels {
		// Fresh chain per channel; sections carry state.
		chain := filter.NewChain(design(cutoff, prefilterOrder, rate))
		channels[ch] = chain.Filter(result.Channel(ch))
	}

	return audio.FromChannels(channels, result.Rate())
}
