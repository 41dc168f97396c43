// Command stimprep prepares listening-test stimuli: it convolves
// stimuli with impulse responses, levels whole variant sets, and
// calibrates files toward a perceptual loudness target.
package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-listening/audio"
	"github.com/cwbudde/algo-listening/audio/wavio"
	"github.com/cwbudde/algo-listening/batch"
	"github.com/cwbudde/algo-listening/calibrate"
	"github.com/cwbudde/algo-listening/dsp/convolve"
	"github.com/cwbudde/algo-listening/measure/loudness"
	"github.com/cwbudde/algo-listening/norm"
)

var cli struct {
	Verbose bool `short:"v" help:"Enable debug logging."`

	Convolve  convolveCmd  `cmd:"" help:"Convolve a stimulus with one impulse response."`
	Batch     batchCmd     `cmd:"" help:"Render a stimulus against a folder of impulse response variants."`
	Calibrate calibrateCmd `cmd:"" help:"Scale a file toward a target phon level."`
	Stats     statsCmd     `cmd:"" help:"Print peak, RMS, and loudness of audio files."`
}

// NormFlags are shared by the rendering commands.
type NormFlags struct {
	Mode      string  `default:"none" enum:"none,peak,rms,lufs,ir_sum" help:"Normalization strategy."`
	Target    float64 `default:"-12" help:"Normalization target (dBFS or LUFS, per mode)."`
	Prefilter string  `default:"none" enum:"none,highpass,lowpass" help:"Measurement prefilter."`
	Cutoff    float64 `default:"0" help:"Prefilter cutoff in Hz."`
}

func (f NormFlags) spec() norm.Spec {
	return norm.Spec{
		Mode:              norm.Mode(f.Mode),
		Target:            f.Target,
		Prefilter:         norm.Prefilter(f.Prefilter),
		PrefilterCutoffHz: f.Cutoff,
	}
}

type convolveCmd struct {
	IR       string `arg:"" type:"existingfile" help:"Impulse response WAV file."`
	Stimulus string `arg:"" type:"existingfile" help:"Stimulus WAV file."`
	Output   string `short:"o" default:"stimulus_out.wav" help:"Output WAV path."`
	FadeOut  bool   `help:"Taper the impulse response tail before convolving."`
	BitDepth int    `default:"24" help:"Output bit depth (16, 24, or 32)."`

	NormFlags `embed:""`
}

func (c *convolveCmd) Run(log *logrus.Logger) error {
	irBuf, err := wavio.Read(c.IR)
	if err != nil {
		return err
	}

	ir := &audio.ImpulseResponse{Buffer: irBuf, Variant: batch.Variant(c.IR)}

	stim, err := wavio.Read(c.Stimulus)
	if err != nil {
		return err
	}

	out, err := convolve.Render(ir, stim, c.FadeOut, c.spec(), convolve.WithLogger(log))
	if err != nil {
		return err
	}

	if err := wavio.Write(c.Output, out, c.BitDepth); err != nil {
		return err
	}

	logStats(log, c.Output, out)

	return nil
}

type batchCmd struct {
	IRDir    string `arg:"" type:"existingdir" help:"Folder of impulse response WAV variants."`
	Stimulus string `arg:"" type:"existingfile" help:"Stimulus WAV file."`
	OutDir   string `short:"o" default:"." help:"Output folder."`
	Prefix   string `default:"stim" help:"Output file name prefix."`
	Name     string `help:"Stimulus label in output names (default: stimulus file name)."`
	FadeOut  bool   `help:"Taper impulse response tails before convolving."`
	BitDepth int    `default:"24" help:"Output bit depth (16, 24, or 32)."`
	Workers  int    `default:"0" help:"Parallel render workers (0 = all CPUs)."`

	NormFlags `embed:""`
}

func (c *batchCmd) Run(log *logrus.Logger) error {
	irs, err := batch.LoadIRs(c.IRDir)
	if err != nil {
		return err
	}

	stim, err := wavio.Read(c.Stimulus)
	if err != nil {
		return err
	}

	name := c.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(c.Stimulus), filepath.Ext(c.Stimulus))
	}

	opts := []batch.Option{batch.WithLogger(log)}
	if c.Workers > 0 {
		opts = append(opts, batch.WithWorkers(c.Workers))
	}

	items, err := batch.Prepare(stim, irs, c.FadeOut, c.spec(), opts...)
	if err != nil {
		return err
	}

	if err := batch.WriteAll(c.OutDir, c.Prefix, name, items, c.BitDepth); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"variants": len(items),
		"out_dir":  c.OutDir,
	}).Info("batch rendered")

	return nil
}

type calibrateCmd struct {
	Input      string  `arg:"" type:"existingfile" help:"WAV file to calibrate."`
	Output     string  `short:"o" default:"calibrated.wav" help:"Output WAV path."`
	TargetPhon float64 `default:"60" help:"Target loudness in phon."`
	DBFSToSPL  float64 `name:"dbfs-to-spl" default:"94" help:"SPL produced by a full-scale signal on the playback chain."`
	MaxIter    int     `default:"100" help:"Iteration bound for the convergence loop."`
	BitDepth   int     `default:"24" help:"Output bit depth (16, 24, or 32)."`
}

func (c *calibrateCmd) Run(log *logrus.Logger) error {
	in, err := wavio.Read(c.Input)
	if err != nil {
		return err
	}

	res, err := calibrate.Calibrate(in, meterOracle, c.TargetPhon, c.DBFSToSPL,
		calibrate.WithLogger(log),
		calibrate.WithMaxIterations(c.MaxIter),
	)
	if err != nil {
		return err
	}

	if err := wavio.Write(c.Output, res.Buffer, c.BitDepth); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"ratio":       res.Ratio,
		"headroom_db": res.HeadroomDB,
		"iterations":  res.Iterations,
	}).Info("calibrated")

	return nil
}

type statsCmd struct {
	Files []string `arg:"" type:"existingfile" help:"WAV files to analyze."`
}

func (c *statsCmd) Run(log *logrus.Logger) error {
	for _, path := range c.Files {
		b, err := wavio.Read(path)
		if err != nil {
			return err
		}

		logStats(log, path, b)
	}

	return nil
}

func logStats(log *logrus.Logger, name string, b *audio.Buffer) {
	s := audio.Measure(b)
	fmt.Printf("%s: %d ch, %d frames @ %d Hz, peak %.2f dBFS, rms %.2f dBFS, %.2f LUFS\n",
		name, s.Channels, s.Frames, s.SampleRate, s.PeakDB, s.RMSDB, s.Loudness)
}

// meterOracle estimates a time-varying loudness curve from K-weighted
// 400 ms block levels of the pressure signal, mapped onto a sone-like
// scale (one doubling per 10 dB above 40 dB SPL). It stands in for an
// external psychoacoustic model; research-grade phon calibration
// should inject one through the calibrate API instead.
func meterOracle(pressure []float64, rate int) ([]float64, error) {
	m := loudness.NewMeter(loudness.WithSampleRate(float64(rate)))
	m.Process([][]float64{pressure})

	blocks := m.Momentary()
	out := make([]float64, len(blocks))

	for i, lufs := range blocks {
		// Blocks are mean squares in Pa^2, so dB re 20 uPa is the
		// block level plus 20*log10(1/2e-5).
		spl := lufs + 0.691 + 93.98
		out[i] = math.Pow(2, (spl-40)/10)
	}

	return out, nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("stimprep"),
		kong.Description("Prepare listening-test stimuli: convolve, level, and calibrate audio."),
		kong.UsageOnError(),
	)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cli.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx.FatalIfErrorf(ctx.Run(log))
}
