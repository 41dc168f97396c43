package audio

import (
	"errors"
	"math"
)

// Errors returned by buffer constructors and accessors.
var (
	ErrInvalidRate    = errors.New("audio: sample rate must be positive")
	ErrNoChannels     = errors.New("audio: buffer needs at least one channel")
	ErrRaggedChannels = errors.New("audio: all channels must have equal frame count")
)

// Buffer is a planar multi-channel audio signal at a single sample rate.
// Samples are full-scale float64 amplitudes.
type Buffer struct {
	data [][]float64
	rate int
}

// New returns a zero-filled Buffer with the given shape.
func New(channels, frames, rate int) (*Buffer, error) {
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	if channels <= 0 {
		return nil, ErrNoChannels
	}
	if frames < 0 {
		frames = 0
	}

	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
	}

	return &Buffer{data: data, rate: rate}, nil
}

// FromChannels wraps planar channel slices without copying.
// Mutations through the slices remain visible through the Buffer.
func FromChannels(data [][]float64, rate int) (*Buffer, error) {
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	if len(data) == 0 {
		return nil, ErrNoChannels
	}

	frames := len(data[0])
	for _, ch := range data[1:] {
		if len(ch) != frames {
			return nil, ErrRaggedChannels
		}
	}

	return &Buffer{data: data, rate: rate}, nil
}

// Mono wraps a single-channel slice without copying.
func Mono(samples []float64, rate int) (*Buffer, error) {
	return FromChannels([][]float64{samples}, rate)
}

// Channels returns the channel count.
func (b *Buffer) Channels() int {
	return len(b.data)
}

// Frames returns the per-channel frame count.
func (b *Buffer) Frames() int {
	if len(b.data) == 0 {
		return 0
	}

	return len(b.data[0])
}

// Rate returns the sample rate in Hz.
func (b *Buffer) Rate() int {
	return b.rate
}

// Channel returns the backing slice of channel ch.
func (b *Buffer) Channel(ch int) []float64 {
	return b.data[ch]
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	data := make([][]float64, len(b.data))
	for ch := range b.data {
		data[ch] = append([]float64(nil), b.data[ch]...)
	}

	return &Buffer{data: data, rate: b.rate}
}

// Scale multiplies every sample by factor in place and returns the
// receiver. Callers that need the original intact should Clone first.
func (b *Buffer) Scale(factor float64) *Buffer {
	for _, ch := range b.data {
		for i := range ch {
			ch[i] *= factor
		}
	}

	return b
}

// ApplyGain scales the buffer by a gain expressed in dB.
func (b *Buffer) ApplyGain(gainDB float64) *Buffer {
	return b.Scale(math.Pow(10, gainDB/20))
}

// MaxAbs returns the largest absolute sample value across all channels.
func (b *Buffer) MaxAbs() float64 {
	peak := 0.0

	for _, ch := range b.data {
		for _, v := range ch {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}

	return peak
}

// RMS returns the root-mean-square over all channels and frames.
func (b *Buffer) RMS() float64 {
	n := 0
	sum := 0.0

	for _, ch := range b.data {
		for _, v := range ch {
			sum += v * v
		}

		n += len(ch)
	}

	if n == 0 {
		return 0
	}

	return math.Sqrt(sum / float64(n))
}

// AbsSum returns the sum of absolute sample values across all channels.
func (b *Buffer) AbsSum() float64 {
	sum := 0.0

	for _, ch := range b.data {
		for _, v := range ch {
			sum += math.Abs(v)
		}
	}

	return sum
}

// Downmix returns the per-frame mean across channels as a mono slice.
func (b *Buffer) Downmix() []float64 {
	frames := b.Frames()
	out := make([]float64, frames)

	if len(b.data) == 1 {
		copy(out, b.data[0])
		return out
	}

	scale := 1 / float64(len(b.data))
	for _, ch := range b.data {
		for i, v := range ch {
			out[i] += v * scale
		}
	}

	return out
}

// ImpulseResponse is a Buffer interpreted as a filter kernel. Variant
// labels the measurement condition and only affects output naming.
type ImpulseResponse struct {
	*Buffer

	Variant string
}
