package metric

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/changedetect"
	"github.com/banshee-data/seismic-qa/internal/seismic/crosspower"
	"github.com/banshee-data/seismic-qa/internal/seismic/numerics"
)

// Sentinel errors for Deviation's semantic-precondition and input-structural
// failures (spec §7).
var (
	ErrMalformedModel = errors.New("metric: malformed noise model file")
	ErrEmptyBand      = errors.New("metric: no model period falls within the configured band")
)

// modelPoint is one (period, power_dB) row of a reference noise model.
type modelPoint struct {
	PeriodSeconds float64
	PowerDB       float64
}

// loadModel parses a whitespace-separated (period, power_dB) table, failing
// with ErrMalformedModel on any line that does not split into exactly two
// fields (spec §4.4, §6 "Model files").
func loadModel(path string) ([]modelPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metric: open model file %q: %w", path, err)
	}
	defer f.Close()

	var points []modelPoint
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q line %d has %d fields, want 2", ErrMalformedModel, path, lineNo, len(fields))
		}
		period, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q line %d: %v", ErrMalformedModel, path, lineNo, err)
		}
		power, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q line %d: %v", ErrMalformedModel, path, lineNo, err)
		}
		points = append(points, modelPoint{PeriodSeconds: period, PowerDB: power})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("metric: read model file %q: %w", path, err)
	}
	return points, nil
}

// Deviation is the noise-model deviation metric of spec §4.4: the average,
// over a configured period band, of observed PSD (dB) minus a reference
// noise model (dB). It covers both the low-noise and high-noise model
// variants; ModelPath selects which reference curve this instance compares
// against (seedscan ships NLNMDeviationMetric and NHNMDeviationMetric as two
// instances of this same algorithm, not two files loaded by one instance).
type Deviation struct {
	Base

	name    string
	version int

	model []modelPoint
}

// NewDeviation returns a Deviation metric named baseName at the given
// version, comparing against the reference model file at modelPath.
func NewDeviation(baseName string, version int, modelPath string) (*Deviation, error) {
	model, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	d := &Deviation{Base: NewBase(), name: baseName, version: version, model: model}
	d.AddArgument("period_low")
	d.AddArgument("period_high")
	d.AddArgument("sample_rate_hz")
	d.AddArgument("channels")
	return d, nil
}

func (d *Deviation) BaseName() string { return d.name }
func (d *Deviation) Version() int     { return d.version }
func (d *Deviation) MetricName() string {
	return fmt.Sprintf("%s_v%d", d.name, d.version)
}

func (d *Deviation) Bind(data ChannelDayData, meta map[seismic.ChannelKey]*seismic.ChannelMeta, cp *crosspower.Engine, det *changedetect.Detector, station seismic.StationKey, date seismic.Date) {
	d.bind(d.MetricName(), data, meta, cp, det, station, date)
}

// Process runs the per-channel loop of spec §4.4 over every channel this
// metric was configured with (the "channels" argument, or every channel in
// Data if unset).
func (d *Deviation) Process(ctx context.Context, force bool) (*seismic.MetricResult, error) {
	channels := d.channelList()
	periodLow := d.GetFloat64("period_low", 20)
	periodHigh := d.GetFloat64("period_high", 50)
	sampleRateHz := d.GetFloat64("sample_rate_hz", 20)

	for _, ch := range channels {
		ch := ch
		err := d.SkipOrEmit(ctx, d.MetricName(), ch, force, func() (float64, bool, error) {
			return d.evaluateChannel(ch, periodLow, periodHigh, sampleRateHz)
		})
		if err != nil {
			// Semantic-precondition failures (SampleRateMismatch,
			// UnsupportedForPolynomial, ZeroResponse, EmptyBand, ...) are
			// fatal to this channel only; sibling channels in the same
			// metric still proceed (spec §7).
			monitoring.Errorf("metric %s: channel %s failed: %v", d.MetricName(), ch, err)
			continue
		}
	}
	return d.Result, nil
}

func (d *Deviation) channelList() []seismic.ChannelKey {
	if v, ok := d.Get("channels"); ok {
		if chans, ok := v.([]seismic.ChannelKey); ok {
			return chans
		}
	}
	chans := make([]seismic.ChannelKey, 0, len(d.Meta))
	for ch := range d.Meta {
		chans = append(chans, ch)
	}
	return chans
}

func (d *Deviation) evaluateChannel(ch seismic.ChannelKey, periodLow, periodHigh, sampleRateHz float64) (float64, bool, error) {
	meta, ok := d.Meta[ch]
	if !ok {
		return 0, false, nil
	}
	series := resampleForAnalysis(crosspower.ChannelSeries{Key: ch, Meta: meta, Runs: d.Data[ch]}, sampleRateHz)
	cp, err := d.CrossPower.Compute(series, series)
	if err != nil {
		return 0, false, err
	}
	if len(cp.Spectrum) < 2 {
		return 0, false, nil
	}

	nf := len(cp.Spectrum)
	psdDB := make([]float64, nf)
	for i, v := range cp.Spectrum {
		if v <= 0 {
			psdDB[i] = math.Inf(-1)
			continue
		}
		psdDB[i] = 10 * math.Log10(v)
	}

	// Invert frequency axis to period: per[k] = 1/freq[nf-k-1] (spec §4.4).
	per := make([]float64, nf)
	psdByPeriod := make([]float64, nf)
	for k := 0; k < nf; k++ {
		srcIdx := nf - k - 1
		freq := float64(srcIdx) * cp.DF
		if freq == 0 {
			per[k] = math.Inf(1)
		} else {
			per[k] = 1.0 / freq
		}
		psdByPeriod[k] = psdDB[srcIdx]
	}

	modelPeriods := make([]float64, len(d.model))
	modelDB := make([]float64, len(d.model))
	for i, p := range d.model {
		modelPeriods[i] = p.PeriodSeconds
		modelDB[i] = p.PowerDB
	}

	// Interpolate requires finite, strictly usable breakpoints; drop the
	// trailing infinite-period bin (DC) before fitting.
	finitePer := per[:nf-1]
	finitePSD := psdByPeriod[:nf-1]

	interpPSD, err := numerics.Interpolate(finitePer, finitePSD, modelPeriods)
	if err != nil {
		return 0, false, err
	}

	var sum float64
	var count int
	for i, T := range modelPeriods {
		if T < periodLow || T > periodHigh {
			continue
		}
		sum += interpPSD[i] - modelDB[i]
		count++
	}
	if count == 0 {
		return 0, false, fmt.Errorf("%w: [%g, %g]", ErrEmptyBand, periodLow, periodHigh)
	}
	return sum / float64(count), true, nil
}

// resampleForAnalysis returns series unchanged when its native sample rate
// is at or below targetHz ("the PSD at 20 Hz sampling (or native)", spec
// §4.4); a channel sampled faster than targetHz is decimated to the
// nearest integer factor by boxcar-averaging consecutive blocks as a crude
// anti-alias low-pass before downsampling.
func resampleForAnalysis(series crosspower.ChannelSeries, targetHz float64) crosspower.ChannelSeries {
	rate := series.Meta.SampleRate
	if targetHz <= 0 || rate <= targetHz {
		return series
	}
	factor := int(math.Round(rate / targetHz))
	if factor < 2 {
		return series
	}

	runs := make([]seismic.DataSet, 0, len(series.Runs))
	for _, run := range series.Runs {
		n := len(run.Samples) / factor
		if n == 0 {
			continue
		}
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			var sum int64
			for j := 0; j < factor; j++ {
				sum += int64(run.Samples[i*factor+j])
			}
			out[i] = int32(sum / int64(factor))
		}
		runs = append(runs, seismic.DataSet{
			StartTimeUs: run.StartTimeUs,
			IntervalUs:  run.IntervalUs * int64(factor),
			Samples:     out,
			DataDigest:  run.DataDigest,
		})
	}

	meta := *series.Meta
	meta.SampleRate = rate / float64(factor)
	return crosspower.ChannelSeries{Key: series.Key, Meta: &meta, Runs: runs}
}
