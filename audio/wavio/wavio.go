// Package wavio reads and writes WAV files at the boundary of the
// stimulus preparation core. The core itself never touches files;
// commands and the batch driver go through this package to exchange
// audio.Buffer values with disk.
package wavio

import (
	"errors"
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-listening/audio"
)

// DefaultBitDepth is used when writing buffers without an explicit
// depth request.
const DefaultBitDepth = 24

// Errors returned by WAV I/O.
var (
	ErrInvalidFile = errors.New("wavio: not a valid WAV file")
	ErrBitDepth    = errors.New("wavio: unsupported bit depth")
)

// Read decodes a PCM WAV file into a float buffer with samples scaled
// to [-1, 1).
func Read(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: decoding %s: %w", path, err)
	}

	return fromIntBuffer(buf)
}

// Write encodes the buffer as PCM WAV at the given bit depth (16, 24,
// or 32). Samples outside full scale are clamped.
func Write(path string, b *audio.Buffer, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, b.Rate(), bitDepth, b.Channels(), 1)

	if err := enc.Write(toIntBuffer(b, bitDepth)); err != nil {
		return fmt.Errorf("wavio: writing %s: %w", path, err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavio: finalizing %s: %w", path, err)
	}

	return nil
}

// fromIntBuffer deinterleaves an integer PCM buffer into planar
// floats.
func fromIntBuffer(buf *gaudio.IntBuffer) (*audio.Buffer, error) {
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidFile)
	}

	bitDepth := int(buf.SourceBitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	frames := len(buf.Data) / channels

	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
		for i := 0; i < frames; i++ {
			data[ch][i] = float64(buf.Data[i*channels+ch]) * scale
		}
	}

	return audio.FromChannels(data, buf.Format.SampleRate)
}

// toIntBuffer interleaves planar floats into an integer PCM buffer at
// the given depth, clamping to full scale.
func toIntBuffer(b *audio.Buffer, bitDepth int) *gaudio.IntBuffer {
	channels := b.Channels()
	frames := b.Frames()
	full := float64(int64(1)<<(bitDepth-1)) - 1

	data := make([]int, channels*frames)
	for ch := 0; ch < channels; ch++ {
		samples := b.Channel(ch)
		for i, v := range samples {
			data[i*channels+ch] = int(math.Round(clamp(v) * full))
		}
	}

	return &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  b.Rate(),
		},
		SourceBitDepth: bitDepth,
		Data:           data,
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}

	if v < -1 {
		return -1
	}

	return v
}
