package norm

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/internal/testutil"
)

func TestPeakScenario(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{0.5, -0.25, 0.1}, 48000)

	out, factor, err := Peak(b, 0, nil)
	if err != nil {
		t.Fatalf("Peak returned error: %v", err)
	}

	if factor != 2 {
		t.Fatalf("factor = %v, want 2", factor)
	}

	testutil.RequireSliceNearlyEqual(t, out.Channel(0), []float64{1, -0.5, 0.2}, 1e-12)

	// Input untouched.
	if b.Channel(0)[0] != 0.5 {
		t.Fatalf("input mutated: %v", b.Channel(0))
	}
}

func TestPeakHitsTarget(t *testing.T) {
	b := testutil.MonoBuffer(t, testutil.DeterministicNoise(1, 0.8, 4096), 48000)

	for _, target := range []float64{0, -6, -23, 3} {
		out, _, err := Peak(b, target, nil)
		if err != nil {
			t.Fatalf("Peak(%v) returned error: %v", target, err)
		}

		want := math.Pow(10, target/20)
		if got := out.MaxAbs(); math.Abs(got-want) > 1e-9 {
			t.Fatalf("peak after normalize to %v dB = %v, want %v", target, got, want)
		}
	}
}

func TestRMSHitsTarget(t *testing.T) {
	b := testutil.MonoBuffer(t, testutil.DeterministicSine(997, 48000, 0.3, 48000), 48000)

	out, _, err := RMS(b, -20, nil)
	if err != nil {
		t.Fatalf("RMS returned error: %v", err)
	}

	want := math.Pow(10, -20.0/20)
	if got := out.RMS(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("rms after normalize = %v, want %v", got, want)
	}
}

func TestLUFSHitsTarget(t *testing.T) {
	b := testutil.MonoBuffer(t, testutil.DeterministicSine(1000, 48000, 0.5, 96000), 48000)

	out, _, err := LUFS(b, -23, nil)
	if err != nil {
		t.Fatalf("LUFS returned error: %v", err)
	}

	stats := audio.Measure(out)
	if math.Abs(stats.Loudness-(-23)) > 0.3 {
		t.Fatalf("loudness after normalize = %v LUFS, want -23", stats.Loudness)
	}
}

func TestIRSum(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{1, 1, 1}, 48000)
	ir := testutil.MonoBuffer(t, []float64{0.25, -0.25}, 48000)

	out, factor, err := IRSum(b, 0, ir)
	if err != nil {
		t.Fatalf("IRSum returned error: %v", err)
	}

	if factor != 2 {
		t.Fatalf("factor = %v, want 2 (1 / abs-sum 0.5)", factor)
	}

	if out.Channel(0)[0] != 2 {
		t.Fatalf("scaled sample = %v, want 2", out.Channel(0)[0])
	}
}

func TestIRSumNilIR(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{1}, 48000)

	if _, _, err := IRSum(b, 0, nil); !errors.Is(err, ErrNilIR) {
		t.Fatalf("err = %v, want ErrNilIR", err)
	}
}

func TestExternalReference(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{0.5, 0.5, 0.5}, 48000)
	ref := testutil.MonoBuffer(t, []float64{0.25, 0, 0}, 48000)

	out, factor, err := Peak(b, 0, ref)
	if err != nil {
		t.Fatalf("Peak returned error: %v", err)
	}

	// Factor derives from the reference peak, not the audio's.
	if factor != 4 {
		t.Fatalf("factor = %v, want 4", factor)
	}

	if out.Channel(0)[0] != 2 {
		t.Fatalf("scaled sample = %v, want 2", out.Channel(0)[0])
	}
}

func TestReferenceLengthMismatch(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{0.5, 0.5}, 48000)
	ref := testutil.MonoBuffer(t, []float64{0.5}, 48000)

	if _, _, err := Peak(b, 0, ref); !errors.Is(err, ErrReferenceLength) {
		t.Fatalf("err = %v, want ErrReferenceLength", err)
	}
}

func TestSilentReference(t *testing.T) {
	b := testutil.MonoBuffer(t, make([]float64, 128), 48000)

	if _, _, err := Peak(b, 0, nil); !errors.Is(err, ErrSilentReference) {
		t.Fatalf("Peak err = %v, want ErrSilentReference", err)
	}

	if _, _, err := RMS(b, 0, nil); !errors.Is(err, ErrSilentReference) {
		t.Fatalf("RMS err = %v, want ErrSilentReference", err)
	}
}

func TestApplyDispatch(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{0.5, -0.25}, 48000)

	out, factor, err := Apply(b, Spec{Mode: ModeNone}, nil, nil)
	if err != nil {
		t.Fatalf("Apply(none) returned error: %v", err)
	}

	if factor != 1 || out != b {
		t.Fatalf("Apply(none) = (%p, %v), want identity", out, factor)
	}

	if _, _, err := Apply(b, Spec{Mode: "median"}, nil, nil); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}

func TestModeValid(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModePeak, ModeRMS, ModeLUFS, ModeIRSum} {
		if !m.Valid() {
			t.Fatalf("mode %q should be valid", m)
		}
	}

	if Mode("loud").Valid() {
		t.Fatal("mode \"loud\" should be invalid")
	}
}

func TestStepLevel(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{1}, 48000)

	_, next := StepLevel(b, false, -10, 2)
	if next != -12 {
		t.Fatalf("next level = %v, want -12", next)
	}

	want := math.Pow(10, -12.0/20)
	if got := b.Channel(0)[0]; math.Abs(got-want) > 1e-12 {
		t.Fatalf("stepped sample = %v, want %v", got, want)
	}
}
