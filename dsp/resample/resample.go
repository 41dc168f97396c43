// Package resample converts buffers between sample rates with a
// band-limited polyphase FIR (Kaiser-windowed sinc prototype).
//
// Conversion is offline and centered: the filter's group delay is
// compensated, so output sample j corresponds to input position
// j*down/up and relative channel alignment is preserved. Every channel
// is converted independently with the same filter; amplitude scale is
// unchanged. The output frame count is exactly
// round(frames * targetRate / sourceRate).
package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-listening/audio"
)

// Errors returned by resampling functions.
var (
	ErrInvalidRate  = errors.New("resample: sample rate must be positive")
	ErrInvalidRatio = errors.New("resample: invalid ratio")
	ErrEmptyInput   = errors.New("resample: empty input")
)

type config struct {
	tapsPerPhase int
	cutoffScale  float64
	kaiserBeta   float64
}

func defaultConfig() config {
	return config{
		tapsPerPhase: 32,
		cutoffScale:  0.92,
		kaiserBeta:   7.5,
	}
}

// Option configures the resampler.
type Option func(*config)

// WithTapsPerPhase overrides taps per polyphase branch.
func WithTapsPerPhase(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.tapsPerPhase = n
		}
	}
}

// WithCutoffScale overrides normalized cutoff scaling in range (0, 1].
// 1.0 equals the theoretical anti-aliasing cutoff.
func WithCutoffScale(v float64) Option {
	return func(cfg *config) {
		if v > 0 && v <= 1 {
			cfg.cutoffScale = v
		}
	}
}

// WithKaiserBeta overrides the Kaiser window beta parameter.
func WithKaiserBeta(beta float64) Option {
	return func(cfg *config) {
		if beta >= 0 {
			cfg.kaiserBeta = beta
		}
	}
}

// Match resamples source so its rate equals targetRate. When the rates
// already match, the input buffer is returned unchanged (same channels,
// same backing storage). Otherwise every channel is converted
// independently and a new buffer is returned.
func Match(source *audio.Buffer, targetRate int, opts ...Option) (*audio.Buffer, error) {
	if targetRate <= 0 {
		return nil, ErrInvalidRate
	}

	if source.Rate() == targetRate {
		return source, nil
	}

	r, err := newConverter(source.Rate(), targetRate, opts...)
	if err != nil {
		return nil, err
	}

	data := make([][]float64, source.Channels())
	for ch := range data {
		data[ch] = r.convert(source.Channel(ch))
	}

	return audio.FromChannels(data, targetRate)
}

// ToRate converts a mono slice from sourceRate to targetRate. When the
// rates match, the input slice is returned as-is.
func ToRate(samples []float64, sourceRate, targetRate int, opts ...Option) ([]float64, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, ErrInvalidRate
	}

	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}

	if sourceRate == targetRate {
		return samples, nil
	}

	r, err := newConverter(sourceRate, targetRate, opts...)
	if err != nil {
		return nil, err
	}

	return r.convert(samples), nil
}

// OutputFrames returns the frame count produced when converting the
// given number of frames between the two rates.
func OutputFrames(frames, sourceRate, targetRate int) int {
	return int(math.Round(float64(frames) * float64(targetRate) / float64(sourceRate)))
}

// converter holds a designed polyphase filter for one rate pair.
type converter struct {
	up     int
	down   int
	phases [][]float64
	center int // prototype center index, for group-delay compensation
}

func newConverter(sourceRate, targetRate int, opts ...Option) (*converter, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	g := gcd(targetRate, sourceRate)

	up := targetRate / g
	down := sourceRate / g

	taps, phases, err := designPolyphaseFIR(up, down, cfg)
	if err != nil {
		return nil, err
	}

	return &converter{
		up:     up,
		down:   down,
		phases: phases,
		center: (len(taps) - 1) / 2,
	}, nil
}

// convert produces round(len(input)*up/down) output samples. Output
// sample j is the centered polyphase dot product at upsampled-grid
// position j*down; samples outside the input count as zero.
func (c *converter) convert(input []float64) []float64 {
	n := len(input)
	m := int(math.Round(float64(n) * float64(c.up) / float64(c.down)))
	out := make([]float64, m)

	for j := 0; j < m; j++ {
		u := j*c.down + c.center
		p := u % c.up
		base := (u - p) / c.up

		var y float64

		for k, coeff := range c.phases[p] {
			idx := base - k
			if idx < 0 || idx >= n {
				continue
			}

			y += coeff * input[idx]
		}

		out[j] = y
	}

	return out
}

func designPolyphaseFIR(up, down int, cfg config) ([]float64, [][]float64, error) {
	if up <= 0 || down <= 0 {
		return nil, nil, ErrInvalidRatio
	}

	nTaps := cfg.tapsPerPhase * up

	fc := (0.5 / float64(maxInt(up, down))) * cfg.cutoffScale
	if fc <= 0 || fc >= 0.5 {
		return nil, nil, fmt.Errorf("resample: invalid cutoff %.6f", fc)
	}

	taps := make([]float64, nTaps)

	center := 0.5 * float64(nTaps-1)
	for n := range nTaps {
		t := float64(n) - center
		taps[n] = 2 * fc * sinc(2*fc*t) * kaiserWindow(n, nTaps, cfg.kaiserBeta)
	}

	var sum float64
	for _, v := range taps {
		sum += v
	}

	if sum == 0 {
		return nil, nil, errors.New("resample: designed zero-sum filter")
	}

	// Unity DC gain after zero-stuffing by up.
	scale := float64(up) / sum
	for i := range taps {
		taps[i] *= scale
	}

	phases := make([][]float64, up)
	for p := range up {
		phase := make([]float64, 0, (nTaps-p+up-1)/up)
		for i := p; i < nTaps; i += up {
			phase = append(phase, taps[i])
		}

		phases[p] = phase
	}

	return taps, phases, nil
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}

	if b < 0 {
		b = -b
	}

	for b != 0 {
		a, b = b, a%b
	}

	if a == 0 {
		return 1
	}

	return a
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

func kaiserWindow(i, n int, beta float64) float64 {
	if n <= 1 || beta == 0 {
		return 1
	}

	t := 2*float64(i)/float64(n-1) - 1
	a := math.Sqrt(math.Max(0, 1-t*t))

	return i0(beta*a) / i0(beta)
}

// i0 is the zeroth-order modified Bessel function (power series).
func i0(x float64) float64 {
	sum := 1.0
	term := 1.0

	x2 := (x * x) / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)

		sum += term
		if term < 1e-16*sum {
			break
		}
	}

	return sum
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
