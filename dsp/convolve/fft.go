package convolve

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// directThreshold is the kernel length below which time-domain
// convolution beats the FFT round trip.
const directThreshold = 64

// convolver performs full linear convolution for one IR/stimulus
// pairing. The FFT plan and scratch buffers are sized once and shared
// across channels of the same pairing.
type convolver struct {
	fftSize int
	plan    *algofft.Plan[complex128]
	a       []complex128
	b       []complex128
}

func newConvolver(kernelFrames, stimFrames int) (*convolver, error) {
	if min(kernelFrames, stimFrames) <= directThreshold {
		return &convolver{}, nil
	}

	fftSize := nextPowerOf2(kernelFrames + stimFrames - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("convolve: creating FFT plan: %w", err)
	}

	return &convolver{
		fftSize: fftSize,
		plan:    plan,
		a:       make([]complex128, fftSize),
		b:       make([]complex128, fftSize),
	}, nil
}

// full returns the linear convolution of signal and kernel, length
// len(signal) + len(kernel) - 1.
func (c *convolver) full(signal, kernel []float64) ([]float64, error) {
	if c.plan == nil {
		return directConvolve(signal, kernel), nil
	}

	for i := range c.a {
		c.a[i] = 0
		c.b[i] = 0
	}

	for i, v := range signal {
		c.a[i] = complex(v, 0)
	}

	for i, v := range kernel {
		c.b[i] = complex(v, 0)
	}

	if err := c.plan.Forward(c.a, c.a); err != nil {
		return nil, fmt.Errorf("convolve: forward FFT: %w", err)
	}

	if err := c.plan.Forward(c.b, c.b); err != nil {
		return nil, fmt.Errorf("convolve: forward FFT: %w", err)
	}

	for i := range c.a {
		c.a[i] *= c.b[i]
	}

	if err := c.plan.Inverse(c.a, c.a); err != nil {
		return nil, fmt.Errorf("convolve: inverse FFT: %w", err)
	}

	out := make([]float64, len(signal)+len(kernel)-1)
	for i := range out {
		out[i] = real(c.a[i])
	}

	return out, nil
}

func directConvolve(signal, kernel []float64) []float64 {
	out := make([]float64, len(signal)+len(kernel)-1)
	for i, s := range signal {
		for j, k := range kernel {
			out[i+j] += s * k
		}
	}

	return out
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p *= 2
	}

	return p
}
