package batch

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/audio/wavio"
	"github.com/cwbudde/algo-listening/internal/testutil"
	"github.com/cwbudde/algo-listening/norm"
)

func makeIR(t *testing.T, samples []float64, variant string) *audio.ImpulseResponse {
	t.Helper()

	return &audio.ImpulseResponse{
		Buffer:  testutil.MonoBuffer(t, samples, 48000),
		Variant: variant,
	}
}

func TestPrepareSharedFactor(t *testing.T) {
	stim := testutil.MonoBuffer(t, testutil.DeterministicSine(1000, 48000, 0.5, 2048), 48000)

	// The second variant is 6 dB quieter than the first; that offset
	// must survive normalization.
	irs := []*audio.ImpulseResponse{
		makeIR(t, []float64{1.0}, "free"),
		makeIR(t, []float64{0.5}, "damped"),
	}

	items, err := Prepare(stim, irs, false, norm.Spec{Mode: norm.ModePeak, Target: -12})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	if items[0].Variant != "free" || items[1].Variant != "damped" {
		t.Fatalf("variant order = %q, %q", items[0].Variant, items[1].Variant)
	}

	// First variant lands on the target.
	want := math.Pow(10, -12.0/20)
	if got := items[0].Buffer.MaxAbs(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("first variant peak = %v, want %v", got, want)
	}

	// Second stays exactly 6 dB below it.
	ratio := items[1].Buffer.MaxAbs() / items[0].Buffer.MaxAbs()
	if math.Abs(ratio-0.5) > 1e-9 {
		t.Fatalf("level ratio = %v, want 0.5", ratio)
	}
}

func TestPrepareModeNoneIsIdentityLevel(t *testing.T) {
	stim := testutil.MonoBuffer(t, []float64{0.25, 0, 0}, 48000)
	irs := []*audio.ImpulseResponse{makeIR(t, []float64{1}, "ref")}

	items, err := Prepare(stim, irs, false, norm.Spec{Mode: norm.ModeNone})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	if got := items[0].Buffer.MaxAbs(); got != 0.25 {
		t.Fatalf("peak = %v, want untouched 0.25", got)
	}
}

func TestPrepareNoVariants(t *testing.T) {
	stim := testutil.MonoBuffer(t, []float64{1}, 48000)

	if _, err := Prepare(stim, nil, false, norm.Spec{Mode: norm.ModeNone}); !errors.Is(err, ErrNoVariants) {
		t.Fatalf("err = %v, want ErrNoVariants", err)
	}
}

func TestPrepareParallelMatchesSerial(t *testing.T) {
	stim := testutil.MonoBuffer(t, testutil.DeterministicNoise(11, 0.5, 1024), 48000)

	irs := make([]*audio.ImpulseResponse, 6)
	for i := range irs {
		irs[i] = makeIR(t, testutil.DeterministicNoise(int64(20+i), 0.5, 64), string(rune('a'+i)))
	}

	spec := norm.Spec{Mode: norm.ModeRMS, Target: -18}

	serial, err := Prepare(stim, irs, false, spec, WithWorkers(1))
	if err != nil {
		t.Fatalf("serial Prepare returned error: %v", err)
	}

	parallel, err := Prepare(stim, irs, false, spec, WithWorkers(4))
	if err != nil {
		t.Fatalf("parallel Prepare returned error: %v", err)
	}

	for i := range serial {
		testutil.RequireSliceNearlyEqual(t, parallel[i].Buffer.Channel(0), serial[i].Buffer.Channel(0), 1e-12)
	}
}

func TestOutputName(t *testing.T) {
	if got, want := OutputName("13ab00ad", "damped", "speech"), "13ab00ad_damped_speech.wav"; got != want {
		t.Fatalf("name = %q, want %q", got, want)
	}
}

func TestVariant(t *testing.T) {
	for _, tc := range []struct{ path, want string }{
		{"/irs/room_a_free.wav", "free"},
		{"hall_damped.wav", "damped"},
		{"anechoic.wav", "anechoic"},
	} {
		if got := Variant(tc.path); got != tc.want {
			t.Fatalf("Variant(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoadIRsAndWriteAll(t *testing.T) {
	dir := t.TempDir()

	a := testutil.MonoBuffer(t, []float64{0.5, 0.25}, 48000)
	b := testutil.MonoBuffer(t, []float64{0.25, 0.125}, 48000)

	if err := wavio.Write(filepath.Join(dir, "room_free.wav"), a, 24); err != nil {
		t.Fatalf("setup write: %v", err)
	}
	if err := wavio.Write(filepath.Join(dir, "room_damped.wav"), b, 24); err != nil {
		t.Fatalf("setup write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	irs, err := LoadIRs(dir)
	if err != nil {
		t.Fatalf("LoadIRs returned error: %v", err)
	}

	if len(irs) != 2 {
		t.Fatalf("loaded %d IRs, want 2", len(irs))
	}

	// Lexical order: room_damped before room_free.
	if irs[0].Variant != "damped" || irs[1].Variant != "free" {
		t.Fatalf("variants = %q, %q", irs[0].Variant, irs[1].Variant)
	}

	out := t.TempDir()
	items := []Item{
		{Variant: "damped", Buffer: b},
		{Variant: "free", Buffer: a},
	}

	if err := WriteAll(out, "x1", "speech", items, 24); err != nil {
		t.Fatalf("WriteAll returned error: %v", err)
	}

	for _, name := range []string{"x1_damped_speech.wav", "x1_free_speech.wav"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}
}

func TestLoadIRsEmptyFolder(t *testing.T) {
	if _, err := LoadIRs(t.TempDir()); !errors.Is(err, ErrNoWAVFiles) {
		t.Fatalf("err = %v, want ErrNoWAVFiles", err)
	}
}
