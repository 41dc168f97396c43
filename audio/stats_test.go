package audio

import (
	"math"
	"testing"
)

func TestMeasure_PeakAndRMS(t *testing.T) {
	// 1 kHz sine at half amplitude.
	rate := 48000
	samples := make([]float64, rate)

	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*1000*float64(i)/float64(rate))
	}

	b, _ := Mono(samples, rate)
	s := Measure(b)

	wantPeak := 20 * math.Log10(0.5)
	if math.Abs(s.PeakDB-wantPeak) > 0.01 {
		t.Fatalf("peak: got %v, want %v", s.PeakDB, wantPeak)
	}

	wantRMS := 20 * math.Log10(0.5/math.Sqrt2)
	if math.Abs(s.RMSDB-wantRMS) > 0.01 {
		t.Fatalf("rms: got %v, want %v", s.RMSDB, wantRMS)
	}

	// K-weighted loudness of a -6 dBFS sine sits near -9 LUFS.
	if s.Loudness > -8 || s.Loudness < -10.5 {
		t.Fatalf("loudness: got %v, want around -9 LUFS", s.Loudness)
	}

	if s.Channels != 1 || s.Frames != rate || s.SampleRate != rate {
		t.Fatalf("shape: got %+v", s)
	}
}

func TestMeasure_Silence(t *testing.T) {
	b, _ := Mono(make([]float64, 4800), 48000)
	s := Measure(b)

	if !math.IsInf(s.PeakDB, -1) || !math.IsInf(s.RMSDB, -1) {
		t.Fatalf("silence: got peak %v, rms %v, want -Inf", s.PeakDB, s.RMSDB)
	}
}
