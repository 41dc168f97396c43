// Package batch renders one stimulus against many impulse-response
// variants and writes the results with a shared naming scheme.
//
// Relative levels across variants must survive normalization, so the
// correction factor is derived once, from the first variant's
// normalized result, and applied verbatim to every variant. Each
// variant is otherwise independent and renders in parallel.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/audio/wavio"
	"github.com/cwbudde/algo-listening/dsp/convolve"
	"github.com/cwbudde/algo-listening/norm"
	"github.com/sirupsen/logrus"
)

// Errors returned by the batch driver.
var (
	ErrNoVariants = errors.New("batch: no impulse response variants")
	ErrNoWAVFiles = errors.New("batch: folder holds no WAV files")
)

// Item is one rendered variant.
type Item struct {
	Variant string
	Buffer  *audio.Buffer
}

// Prepare convolves the stimulus with every impulse response and
// levels all results with a single correction factor. The factor is
// the ratio between the first variant's normalized and raw peaks, so
// the level relationships the impulse responses encode are preserved
// across the whole set. Results keep the order of irs.
func Prepare(stimulus *audio.Buffer, irs []*audio.ImpulseResponse, fadeOut bool, spec norm.Spec, opts ...Option) ([]Item, error) {
	if len(irs) == 0 {
		return nil, ErrNoVariants
	}

	cfg := ApplyOptions(opts...)

	factor, err := deriveFactor(stimulus, irs[0], fadeOut, spec, cfg)
	if err != nil {
		return nil, err
	}

	cfg.logger.WithFields(logrus.Fields{
		"variants": len(irs),
		"factor":   factor,
	}).Info("prepared level correction")

	raw := norm.Spec{Mode: norm.ModeNone}
	items := make([]Item, len(irs))

	var group errgroup.Group
	group.SetLimit(cfg.workers)

	for i, ir := range irs {
		group.Go(func() error {
			out, err := convolve.Render(ir, stimulus, fadeOut, raw, convolve.WithLogger(cfg.logger))
			if err != nil {
				return fmt.Errorf("batch: variant %q: %w", ir.Variant, err)
			}

			items[i] = Item{Variant: ir.Variant, Buffer: out.Scale(factor)}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}

// deriveFactor renders the first variant raw and normalized and takes
// the peak ratio between the two.
func deriveFactor(stimulus *audio.Buffer, ir *audio.ImpulseResponse, fadeOut bool, spec norm.Spec, cfg Config) (float64, error) {
	if spec.Mode == norm.ModeNone || spec.Mode == "" {
		return 1, nil
	}

	raw, err := convolve.Render(ir, stimulus, fadeOut, norm.Spec{Mode: norm.ModeNone}, convolve.WithLogger(cfg.logger))
	if err != nil {
		return 0, fmt.Errorf("batch: reference variant %q: %w", ir.Variant, err)
	}

	normalized, err := convolve.Render(ir, stimulus, fadeOut, spec, convolve.WithLogger(cfg.logger))
	if err != nil {
		return 0, fmt.Errorf("batch: reference variant %q: %w", ir.Variant, err)
	}

	peak := raw.MaxAbs()
	if peak == 0 {
		return 0, fmt.Errorf("batch: reference variant %q: %w", ir.Variant, norm.ErrSilentReference)
	}

	return normalized.MaxAbs() / peak, nil
}

// WriteAll persists rendered items as prefix_variant_stimName.wav
// under dir, creating it if needed.
func WriteAll(dir, prefix, stimName string, items []Item, bitDepth int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("batch: creating %s: %w", dir, err)
	}

	for _, item := range items {
		path := filepath.Join(dir, OutputName(prefix, item.Variant, stimName))
		if err := wavio.Write(path, item.Buffer, bitDepth); err != nil {
			return err
		}
	}

	return nil
}

// OutputName builds the shared stimulus file name for one variant.
func OutputName(prefix, variant, stimName string) string {
	return fmt.Sprintf("%s_%s_%s.wav", prefix, variant, stimName)
}

// Variant extracts the variant label from an impulse response path:
// the base name segment after the last underscore, without extension.
// A name with no underscore is its own variant label.
func Variant(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.LastIndex(base, "_"); idx >= 0 {
		return base[idx+1:]
	}

	return base
}

// LoadIRs reads every WAV file in dir as an impulse response, tagged
// with the variant label from its file name, in lexical path order.
func LoadIRs(dir string) ([]*audio.ImpulseResponse, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: reading %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}

		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoWAVFiles, dir)
	}

	sort.Strings(paths)

	irs := make([]*audio.ImpulseResponse, len(paths))
	for i, path := range paths {
		buf, err := wavio.Read(path)
		if err != nil {
			return nil, err
		}

		irs[i] = &audio.ImpulseResponse{Buffer: buf, Variant: Variant(path)}
	}

	return irs, nil
}
