// Package audio defines the multi-channel buffer type shared by all
// stimulus-preparation components, together with level helpers and the
// full-scale clipping guard.
//
// A Buffer stores planar float64 samples (channels x frames) with a
// single sample rate. Amplitudes are full-scale: the valid playback
// range is [-1, 1], and exceeding it is a policy failure detected by
// CheckClipping rather than silently corrected.
//
// Buffers are value-like: transformations either return a fresh Buffer
// or mutate the receiver and return it, so ownership stays with the
// caller. Nothing in this package holds background resources.
package audio
