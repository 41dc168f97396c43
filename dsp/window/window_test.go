package window

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-listening/audio"
)

func TestHFT90D_Endpoints(t *testing.T) {
	w := HFT90D(128)
	if len(w) != 128 {
		t.Fatalf("len: got %d, want 128", len(w))
	}

	// HFT90D coefficients sum to ~0 with alternating signs applied, so
	// both edges of the symmetric window sit near zero.
	if math.Abs(w[0]) > 1e-3 {
		t.Fatalf("w[0] = %v, want ~0", w[0])
	}

	if math.Abs(w[len(w)-1]) > 1e-3 {
		t.Fatalf("w[last] = %v, want ~0", w[len(w)-1])
	}

	// Center value equals the sum of absolute coefficients.
	want := 1 + 1.942604 + 1.340318 + 0.440811 + 0.043097

	mid := w[len(w)/2]
	if math.Abs(mid-want) > 1e-2 {
		t.Fatalf("center: got %v, want ~%v", mid, want)
	}
}

func TestFadeOut_NormalizedAndMonotoneEnds(t *testing.T) {
	fade := FadeOut(1000)
	if len(fade) != 1000 {
		t.Fatalf("len: got %d, want 1000", len(fade))
	}

	peak := 0.0
	for _, v := range fade {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}

	if math.Abs(peak-1) > 1e-12 {
		t.Fatalf("peak: got %v, want 1", peak)
	}

	// The curve starts at its peak and ends near zero.
	if math.Abs(fade[0]-1) > 1e-6 {
		t.Fatalf("fade[0]: got %v, want 1", fade[0])
	}

	if math.Abs(fade[len(fade)-1]) > 1e-3 {
		t.Fatalf("fade[last]: got %v, want ~0", fade[len(fade)-1])
	}
}

func TestTaperTail_AppliesOnlyToTail(t *testing.T) {
	rate := 48000
	frames := rate // 1 s of DC
	samples := make([]float64, frames)

	for i := range samples {
		samples[i] = 1
	}

	ir, err := audio.Mono(samples, rate)
	if err != nil {
		t.Fatalf("Mono: %v", err)
	}

	TaperTail(ir, DefaultTaperDuration)

	size := int(float64(rate) * DefaultTaperDuration)
	out := ir.Channel(0)

	// Untouched region stays at unity.
	if out[frames-size-1] != 1 {
		t.Fatalf("sample before taper: got %v, want 1", out[frames-size-1])
	}

	// Tapered region matches the fade curve, ending near zero.
	if math.Abs(out[frames-1]) > 1e-3 {
		t.Fatalf("last sample: got %v, want ~0", out[frames-1])
	}

	if math.Abs(out[frames-size]-1) > 1e-6 {
		t.Fatalf("first tapered sample: got %v, want ~1", out[frames-size])
	}
}

func TestTaperTail_ShortBufferDoesNotPanic(t *testing.T) {
	ir, _ := audio.Mono([]float64{1, 1, 1}, 48000)

	TaperTail(ir, DefaultTaperDuration)

	// Partial taper: only the trailing end of the fade curve applies,
	// and the final sample still lands near zero.
	if got := math.Abs(ir.Channel(0)[2]); got > 1e-3 {
		t.Fatalf("last sample: got %v, want ~0", got)
	}
}

func TestTaperTail_StereoChannelsIdentical(t *testing.T) {
	left := make([]float64, 9600)
	right := make([]float64, 9600)

	for i := range left {
		left[i] = 0.5
		right[i] = 0.5
	}

	ir, _ := audio.FromChannels([][]float64{left, right}, 48000)
	TaperTail(ir, DefaultTaperDuration)

	for i := range left {
		if ir.Channel(0)[i] != ir.Channel(1)[i] {
			t.Fatalf("frame %d: channels diverge: %v vs %v", i, ir.Channel(0)[i], ir.Channel(1)[i])
		}
	}
}

func TestGeneralCosine_ZeroLength(t *testing.T) {
	if got := GeneralCosine(hft90dCoeffs, 0); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}
