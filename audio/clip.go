package audio

import (
	"fmt"
	"math"
)

// ClippingError reports a buffer whose peak exceeds full scale.
// HeadroomDB is negative: the amount by which the level overflows.
type ClippingError struct {
	HeadroomDB float64
}

func (e *ClippingError) Error() string {
	return fmt.Sprintf("audio: signal clipped, level overflows by %.2f dB", -e.HeadroomDB)
}

// Headroom returns the linear margin between the buffer's peak and full
// scale (1/peak). Values below 1 indicate clipping. Returns +Inf for a
// silent buffer.
func Headroom(b *Buffer) float64 {
	peak := b.MaxAbs()
	if peak == 0 {
		return math.Inf(1)
	}

	return 1 / peak
}

// CheckClipping verifies the full-scale invariant and returns the
// headroom in dB. If the peak exceeds 1.0 it returns a *ClippingError
// carrying the (negative) headroom; the buffer is never attenuated
// here, since the requested absolute level is the caller's contract.
func CheckClipping(b *Buffer) (float64, error) {
	headroomDB := 20 * math.Log10(Headroom(b))
	if b.MaxAbs() > 1 {
		return headroomDB, &ClippingError{HeadroomDB: headroomDB}
	}

	return headroomDB, nil
}
