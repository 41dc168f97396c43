// Package window generates generalized-cosine windows and applies the
// fade-out taper that suppresses audible clicks from truncated impulse
// responses.
package window

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-listening/audio"
)

// hft90dCoeffs are the HFT90D flat-top coefficients with the
// alternating cosine-term signs baked in.
var hft90dCoeffs = []float64{1, -1.942604, 1.340318, -0.440811, 0.043097}

// DefaultTaperDuration is the fade-out length applied to impulse
// response tails: 1/12.5 s, i.e. 80 ms at any sample rate.
const DefaultTaperDuration = 1.0 / 12.5

// GeneralCosine returns a symmetric window of the given length built
// from cosine-term coefficients: w(x) = sum_k c[k]*cos(k*2*pi*x) with
// x running over [0, 1].
func GeneralCosine(coeffs []float64, length int) []float64 {
	if length <= 0 {
		return nil
	}

	out := make([]float64, length)
	for i := range out {
		x := samplePosition(i, length)

		sum := 0.0
		for k, c := range coeffs {
			sum += c * math.Cos(float64(k)*2*math.Pi*x)
		}

		out[i] = sum
	}

	return out
}

// HFT90D returns an HFT90D window of the given length.
func HFT90D(length int) []float64 {
	return GeneralCosine(hft90dCoeffs, length)
}

// FadeOut returns the falling half of an HFT90D window of length
// 2*size, normalized so its peak equals 1. Multiplying a signal tail by
// this curve takes it smoothly to (near) zero.
func FadeOut(size int) []float64 {
	if size <= 0 {
		return nil
	}

	full := HFT90D(2 * size)
	half := full[size:]

	peak := 0.0
	for _, v := range half {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	if peak == 0 {
		return half
	}

	out := make([]float64, size)
	for i, v := range half {
		out[i] = v / peak
	}

	return out
}

// TaperTail applies an HFT90D fade-out over the final duration seconds
// of each channel of ir, in place, and returns ir. If the buffer is
// shorter than the fade, only the available samples are tapered.
func TaperTail(ir *audio.Buffer, duration float64) *audio.Buffer {
	if duration <= 0 {
		return ir
	}

	size := int(float64(ir.Rate()) * duration)
	if size <= 0 {
		return ir
	}

	fade := FadeOut(size)

	n := size
	if frames := ir.Frames(); frames < n {
		n = frames
	}

	for ch := 0; ch < ir.Channels(); ch++ {
		samples := ir.Channel(ch)
		vecmath.MulBlockInPlace(samples[len(samples)-n:], fade[size-n:])
	}

	return ir
}

func samplePosition(n, size int) float64 {
	if size <= 1 {
		return 0
	}

	return float64(n) / float64(size-1)
}
