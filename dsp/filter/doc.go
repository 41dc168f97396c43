// Package filter provides second-order IIR sections and Butterworth
// cascade design.
//
// Sections use the Direct Form II Transposed structure and are chained
// in series for higher-order responses. The package covers the two
// filter uses of this repository: the 12th-order Butterworth
// normalization prefilter and the K-weighting stages of the loudness
// meter.
package filter
