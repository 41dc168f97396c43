// Package loudness measures integrated loudness per EBU R128 /
// ITU-R BS.1770: K-weighting, 400 ms gating blocks with 75 % overlap,
// absolute and relative gating.
package loudness

import (
	"math"

	"github.com/cwbudde/algo-listening/dsp/filter"
)

const (
	// K-weighting filter parameters from BS.1770.
	kWeightingShelfFreq = 1500.0
	kWeightingShelfGain = 4.0

	kWeightingHpfFreq = 38.0

	// Gating parameters.
	blockDuration = 0.4
	blockOverlap  = 0.75
	absThreshold  = -70.0
	relThreshold  = -10.0
)

// Meter measures integrated loudness of planar multi-channel audio.
type Meter struct {
	sampleRate float64

	blockSamples int
	stepSamples  int

	// Mean-square gating blocks (sum over channels), accumulated
	// across Process calls.
	blocks []float64
}

// NewMeter creates a loudness meter with the given options.
func NewMeter(opts ...MeterOption) *Meter {
	cfg := ApplyMeterOptions(opts...)

	blockSamples := int(math.Round(blockDuration * cfg.SampleRate))
	stepSamples := int(math.Round(blockDuration * (1 - blockOverlap) * cfg.SampleRate))

	if stepSamples < 1 {
		stepSamples = 1
	}

	return &Meter{
		sampleRate:   cfg.SampleRate,
		blockSamples: blockSamples,
		stepSamples:  stepSamples,
	}
}

// Reset discards all accumulated gating blocks.
func (m *Meter) Reset() {
	m.blocks = nil
}

// Process K-weights the given planar channels and accumulates gating
// blocks. The input is not modified. Channels must share one length.
func (m *Meter) Process(channels [][]float64) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return
	}

	frames := len(channels[0])

	weighted := make([][]float64, len(channels))
	for i, ch := range channels {
		weighted[i] = m.kWeight(ch)
	}

	// Signals shorter than one gating block produce a single truncated
	// block, so very short buffers still yield a reading.
	if frames < m.blockSamples {
		m.blocks = append(m.blocks, meanSquareSum(weighted, 0, frames))
		return
	}

	for start := 0; start+m.blockSamples <= frames; start += m.stepSamples {
		m.blocks = append(m.blocks, meanSquareSum(weighted, start, start+m.blockSamples))
	}
}

// Integrated returns the gated integrated loudness in LUFS of all
// audio processed since the last Reset. Returns -Inf when nothing
// passes the gates.
func (m *Meter) Integrated() float64 {
	if len(m.blocks) == 0 {
		return math.Inf(-1)
	}

	// Absolute gating at -70 LUFS.
	var (
		absGated    []float64
		absGatedSum float64
	)

	for _, b := range m.blocks {
		if toLUFS(b) > absThreshold {
			absGated = append(absGated, b)
			absGatedSum += b
		}
	}

	if len(absGated) == 0 {
		return math.Inf(-1)
	}

	// Relative gating at -10 LU below the absolute-gated mean.
	gammaRel := toLUFS(absGatedSum/float64(len(absGated))) + relThreshold

	var (
		relGatedSum   float64
		relGatedCount int
	)

	for _, b := range absGated {
		if toLUFS(b) > gammaRel {
			relGatedSum += b
			relGatedCount++
		}
	}

	if relGatedCount == 0 {
		return math.Inf(-1)
	}

	return toLUFS(relGatedSum / float64(relGatedCount))
}

// Momentary returns the ungated per-block loudness values in LUFS, in
// block order, of all audio processed since the last Reset.
func (m *Meter) Momentary() []float64 {
	out := make([]float64, len(m.blocks))
	for i, b := range m.blocks {
		out[i] = toLUFS(b)
	}

	return out
}

// Integrated is a one-shot convenience: integrated loudness of planar
// channels at the given rate.
func Integrated(channels [][]float64, sampleRate float64) float64 {
	m := NewMeter(WithSampleRate(sampleRate))
	m.Process(channels)

	return m.Integrated()
}

// kWeight returns a K-weighted copy of one channel: shelving
// pre-emphasis for head effects followed by a 38 Hz highpass.
func (m *Meter) kWeight(samples []float64) []float64 {
	q := 1.0 / math.Sqrt2

	chain := filter.NewChain([]filter.Coefficients{
		filter.HighShelf(kWeightingShelfFreq, kWeightingShelfGain, q, m.sampleRate),
		filter.Highpass(kWeightingHpfFreq, q, m.sampleRate),
	})

	return chain.Filter(samples)
}

func meanSquareSum(channels [][]float64, start, end int) float64 {
	n := float64(end - start)
	if n <= 0 {
		return 0
	}

	sum := 0.0

	for _, ch := range channels {
		chSum := 0.0
		for _, v := range ch[start:end] {
			chSum += v * v
		}

		sum += chSum / n
	}

	return sum
}

func toLUFS(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return -120.0 // effective floor
	}

	return -0.691 + 10*math.Log10(meanSquare)
}
