package wavio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-listening/internal/testutil"
)

func TestRoundTrip(t *testing.T) {
	left := testutil.DeterministicSine(440, 48000, 0.5, 4800)
	right := testutil.DeterministicSine(880, 48000, 0.25, 4800)
	b := testutil.StereoBuffer(t, left, right, 48000)

	for _, bitDepth := range []int{16, 24, 32} {
		path := filepath.Join(t.TempDir(), "roundtrip.wav")

		if err := Write(path, b, bitDepth); err != nil {
			t.Fatalf("Write(%d bit) returned error: %v", bitDepth, err)
		}

		got, err := Read(path)
		if err != nil {
			t.Fatalf("Read(%d bit) returned error: %v", bitDepth, err)
		}

		if got.Rate() != 48000 || got.Channels() != 2 || got.Frames() != 4800 {
			t.Fatalf("shape = %dx%d@%d, want 2x4800@48000", got.Channels(), got.Frames(), got.Rate())
		}

		eps := 1.5 / float64(int64(1)<<(bitDepth-1))
		for ch := 0; ch < 2; ch++ {
			for i, want := range b.Channel(ch) {
				if diff := math.Abs(got.Channel(ch)[i] - want); diff > eps {
					t.Fatalf("%d bit ch %d sample %d: diff %v exceeds %v", bitDepth, ch, i, diff, eps)
				}
			}
		}
	}
}

func TestWriteClampsOverflow(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{1.5, -2.0, 0.0}, 44100)
	path := filepath.Join(t.TempDir(), "clamped.wav")

	if err := Write(path, b, 16); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}

	if peak := got.MaxAbs(); peak > 1 {
		t.Fatalf("peak after clamped write = %v, want <= 1", peak)
	}
}

func TestWriteRejectsBitDepth(t *testing.T) {
	b := testutil.MonoBuffer(t, []float64{0}, 44100)

	err := Write(filepath.Join(t.TempDir(), "bad.wav"), b, 12)
	if !errors.Is(err, ErrBitDepth) {
		t.Fatalf("err = %v, want ErrBitDepth", err)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("definitely not a RIFF container"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := Read(path); err == nil {
		t.Fatal("Read accepted a non-WAV file")
	}
}
