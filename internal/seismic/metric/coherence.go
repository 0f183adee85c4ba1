package metric

import (
	"context"
	"fmt"

	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/changedetect"
	"github.com/banshee-data/seismic-qa/internal/seismic/crosspower"
)

// Coherence is the channel-pair coherence metric of spec §4.4: for a
// configured pair (X, Y), gamma^2(f) = |Gxy(f)|^2 / (Gxx(f) * Gyy(f)),
// averaged over the configured period band.
//
// The source's coherence metric mixed in partially-commented logic and an
// early process termination; per spec §9's open question, this
// implementation follows §4.4's algorithm only and does not reproduce that
// short-circuit behavior.
type Coherence struct {
	Base

	name    string
	version int
}

// NewCoherence returns a Coherence metric named baseName at the given
// version.
func NewCoherence(baseName string, version int) *Coherence {
	c := &Coherence{Base: NewBase(), name: baseName, version: version}
	c.AddArgument("period_low")
	c.AddArgument("period_high")
	c.AddArgument("channel_x")
	c.AddArgument("channel_y")
	return c
}

func (c *Coherence) BaseName() string { return c.name }
func (c *Coherence) Version() int     { return c.version }
func (c *Coherence) MetricName() string {
	return fmt.Sprintf("%s_v%d", c.name, c.version)
}

func (c *Coherence) Bind(data ChannelDayData, meta map[seismic.ChannelKey]*seismic.ChannelMeta, cp *crosspower.Engine, det *changedetect.Detector, station seismic.StationKey, date seismic.Date) {
	c.bind(c.MetricName(), data, meta, cp, det, station, date)
}

// Process runs the two-channel loop of spec §4.4 for the configured pair.
func (c *Coherence) Process(ctx context.Context, force bool) (*seismic.MetricResult, error) {
	xv, _ := c.Get("channel_x")
	yv, _ := c.Get("channel_y")
	x, okX := xv.(seismic.ChannelKey)
	y, okY := yv.(seismic.ChannelKey)
	if !okX || !okY {
		return c.Result, nil
	}

	periodLow := c.GetFloat64("period_low", 20)
	periodHigh := c.GetFloat64("period_high", 50)

	err := c.SkipOrEmitPair(ctx, c.MetricName(), x, y, force, func() (float64, bool, error) {
		return c.evaluatePair(x, y, periodLow, periodHigh)
	})
	if err != nil {
		// Semantic-precondition failures are fatal to this pair only; the
		// metric still returns whatever (empty) result it has (spec §7).
		monitoring.Errorf("metric %s: pair %s/%s failed: %v", c.MetricName(), x, y, err)
	}
	return c.Result, nil
}

func (c *Coherence) evaluatePair(x, y seismic.ChannelKey, periodLow, periodHigh float64) (float64, bool, error) {
	metaX, okX := c.Meta[x]
	metaY, okY := c.Meta[y]
	if !okX || !okY {
		return 0, false, nil
	}

	sx := crosspower.ChannelSeries{Key: x, Meta: metaX, Runs: c.Data[x]}
	sy := crosspower.ChannelSeries{Key: y, Meta: metaY, Runs: c.Data[y]}

	gxx, err := c.CrossPower.Compute(sx, sx)
	if err != nil {
		return 0, false, err
	}
	gyy, err := c.CrossPower.Compute(sy, sy)
	if err != nil {
		return 0, false, err
	}
	gxy, err := c.CrossPower.Compute(sx, sy)
	if err != nil {
		return 0, false, err
	}

	nf := len(gxy.Spectrum)
	if nf == 0 || nf != len(gxx.Spectrum) || nf != len(gyy.Spectrum) {
		return 0, false, nil
	}

	gammaSq := make([]float64, nf)
	for k := 0; k < nf; k++ {
		denom := gxx.Spectrum[k] * gyy.Spectrum[k]
		if denom == 0 {
			gammaSq[k] = 0
			continue
		}
		gammaSq[k] = (gxy.Spectrum[k] * gxy.Spectrum[k]) / denom
	}

	periods := make([]float64, nf)
	for k := 0; k < nf; k++ {
		freq := float64(k) * gxy.DF
		if freq == 0 {
			periods[k] = 0 // DC has no period; excluded from any finite band below
			continue
		}
		periods[k] = 1.0 / freq
	}

	var sum float64
	var count int
	for k := 0; k < nf; k++ {
		T := periods[k]
		if T < periodLow || T > periodHigh {
			continue
		}
		sum += gammaSq[k]
		count++
	}
	if count == 0 {
		return 0, false, fmt.Errorf("%w: [%g, %g]", ErrEmptyBand, periodLow, periodHigh)
	}
	return sum / float64(count), true, nil
}
