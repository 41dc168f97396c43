package audio

import (
	"math"

	"github.com/cwbudde/algo-listening/measure/loudness"
)

// Stats summarizes a buffer's level for diagnostic logging: peak and
// RMS relative to full scale, and gated integrated loudness.
type Stats struct {
	PeakDB     float64
	RMSDB      float64
	Loudness   float64 // LUFS
	Channels   int
	Frames     int
	SampleRate int
}

// Measure computes level statistics for the buffer. The readings are
// advisory (logging-level observability); enforcement of the
// full-scale invariant stays with CheckClipping.
func Measure(b *Buffer) Stats {
	channels := make([][]float64, b.Channels())
	for ch := range channels {
		channels[ch] = b.Channel(ch)
	}

	return Stats{
		PeakDB:     ampToDB(b.MaxAbs()),
		RMSDB:      ampToDB(b.RMS()),
		Loudness:   loudness.Integrated(channels, float64(b.Rate())),
		Channels:   b.Channels(),
		Frames:     b.Frames(),
		SampleRate: b.Rate(),
	}
}

// ampToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for silence.
func ampToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(v)
}
