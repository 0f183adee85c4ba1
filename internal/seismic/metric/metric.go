// Package metric implements the abstract metric contract of spec §4.4 as a
// Go interface (capability set: name, version, bind, process) plus a shared
// Base struct every concrete metric embeds, per the redesign direction in
// spec §9: "the original abstract-base-class metric hierarchy should become
// an interface ... with tagged variants for the concrete metrics; shared
// services ... live in a plain struct that every metric borrows."
package metric

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/changedetect"
	"github.com/banshee-data/seismic-qa/internal/seismic/crosspower"
)

// ErrUnknownArgument is returned by Base.Set when the named argument was
// never declared with AddArgument (spec §4.4, §7 input-structural error).
var ErrUnknownArgument = errors.New("metric: unknown argument")

// Metric is the capability set every concrete metric implements (spec §4.4).
type Metric interface {
	BaseName() string
	Version() int
	MetricName() string
	AddArgument(name string)
	Set(name string, value interface{}) error
	Get(name string) (interface{}, bool)
	Bind(data ChannelDayData, meta map[seismic.ChannelKey]*seismic.ChannelMeta, cp *crosspower.Engine, det *changedetect.Detector, station seismic.StationKey, date seismic.Date)
	// (Bind's parameter shape matches Base.bind minus the metric name,
	// which each concrete type supplies from its own MetricName().)
	Process(ctx context.Context, force bool) (*seismic.MetricResult, error)
}

// ChannelDayData is the per-channel sample runs for one station-day, the
// shape a DataProvider hands the engine (spec §6 "Data ingress").
type ChannelDayData map[seismic.ChannelKey][]seismic.DataSet

// DataDigest returns the combined digest over every run in a channel's
// day, used when mixing a channel's data into a value digest (spec §3).
func (c ChannelDayData) DataDigest(ch seismic.ChannelKey) []byte {
	acc := seismic.NewDigestAccumulator()
	runs := c[ch]
	acc.WriteInt32(int32(len(runs)))
	for _, r := range runs {
		acc.WriteBytes(r.DataDigest)
	}
	return acc.Sum()
}

// Base is the plain struct holding the services spec §9 says every metric
// should borrow rather than inherit: the named-argument bag, the day's
// bound inputs, the cross-power engine, and the result buffer.
type Base struct {
	args map[string]interface{}
	decl map[string]bool

	Data       ChannelDayData
	Meta       map[seismic.ChannelKey]*seismic.ChannelMeta
	CrossPower *crosspower.Engine
	Detector   *changedetect.Detector
	Station    seismic.StationKey
	Date       seismic.Date

	Result *seismic.MetricResult
}

// NewBase returns an empty Base ready for AddArgument calls.
func NewBase() Base {
	return Base{
		args: make(map[string]interface{}),
		decl: make(map[string]bool),
	}
}

// AddArgument declares a recognized named parameter (spec §4.4).
func (b *Base) AddArgument(name string) {
	b.decl[name] = true
}

// Set populates a declared argument, failing with ErrUnknownArgument if the
// name was never declared (spec §4.4, §7).
func (b *Base) Set(name string, value interface{}) error {
	if !b.decl[name] {
		return fmt.Errorf("%w: %q", ErrUnknownArgument, name)
	}
	b.args[name] = value
	return nil
}

// Get returns the value set for name, or (nil, false) if unset (spec §4.4).
func (b *Base) Get(name string) (interface{}, bool) {
	v, ok := b.args[name]
	return v, ok
}

// GetFloat64 is a convenience accessor for a float64-typed argument.
func (b *Base) GetFloat64(name string, fallback float64) float64 {
	v, ok := b.Get(name)
	if !ok {
		return fallback
	}
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return f
}

// GetString is a convenience accessor for a string-typed argument.
func (b *Base) GetString(name string, fallback string) string {
	v, ok := b.Get(name)
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// bind attaches the day's inputs and allocates an empty result (spec §4.4).
// Concrete metrics call this from their own exported Bind method, passing
// their own MetricName() — it is unexported because Base alone does not
// know a metric's name/version.
func (b *Base) bind(metricName string, data ChannelDayData, meta map[seismic.ChannelKey]*seismic.ChannelMeta, cp *crosspower.Engine, det *changedetect.Detector, station seismic.StationKey, date seismic.Date) {
	b.Data = data
	b.Meta = meta
	b.CrossPower = cp
	b.Detector = det
	b.Station = station
	b.Date = date
	b.Result = seismic.NewMetricResult(date, metricName, station)
}

// SkipOrEmit runs the per-channel change-detection gate common to every
// single-channel metric (spec §4.4 "Per-channel loop"): it computes the
// digest, asks the Detector whether it changed, and only then calls
// compute. If compute returns ok=false (the NO_RESULT sentinel: band didn't
// intersect usable periods, or a precondition failed softly), nothing is
// emitted and no error is returned.
func (b *Base) SkipOrEmit(ctx context.Context, metricName string, ch seismic.ChannelKey, force bool, compute func() (float64, bool, error)) error {
	meta, ok := b.Meta[ch]
	if !ok {
		monitoring.Debugf("metric %s: no metadata for channel %s, skipping", metricName, ch)
		return nil
	}
	dataDigest := b.Data.DataDigest(ch)

	digest, err := b.Detector.ValueDigestChanged(ctx, b.Date, metricName, b.Station.String(), ch.String(), []*seismic.ChannelMeta{meta}, [][]byte{dataDigest}, force)
	if err != nil {
		return err
	}
	if digest == nil {
		monitoring.Debugf("metric %s: digest unchanged for channel %s, skipping", metricName, ch)
		return nil
	}

	value, ok, err := compute()
	if err != nil {
		return err
	}
	if !ok {
		monitoring.Debugf("metric %s: NO_RESULT for channel %s, skipping", metricName, ch)
		return nil
	}

	b.Result.PerChannel[ch.String()] = seismic.MetricValue{Value: value, Digest: digest}
	return nil
}

// SkipOrEmitPair is SkipOrEmit's two-channel analogue, used by Coherence:
// the digest mixes both channels' metadata and data, and the emitted key is
// the canonicalized pair id (spec §3, §4.4).
func (b *Base) SkipOrEmitPair(ctx context.Context, metricName string, x, y seismic.ChannelKey, force bool, compute func() (float64, bool, error)) error {
	metaX, okX := b.Meta[x]
	metaY, okY := b.Meta[y]
	if !okX || !okY {
		monitoring.Debugf("metric %s: missing metadata for pair %s/%s, skipping", metricName, x, y)
		return nil
	}
	pairID := seismic.PairID(x, y)
	dataDigestX := b.Data.DataDigest(x)
	dataDigestY := b.Data.DataDigest(y)

	digest, err := b.Detector.ValueDigestChanged(ctx, b.Date, metricName, b.Station.String(), pairID, []*seismic.ChannelMeta{metaX, metaY}, [][]byte{dataDigestX, dataDigestY}, force)
	if err != nil {
		return err
	}
	if digest == nil {
		monitoring.Debugf("metric %s: digest unchanged for pair %s, skipping", metricName, pairID)
		return nil
	}

	value, ok, err := compute()
	if err != nil {
		return err
	}
	if !ok {
		monitoring.Debugf("metric %s: NO_RESULT for pair %s, skipping", metricName, pairID)
		return nil
	}

	b.Result.PerChannel[pairID] = seismic.MetricValue{Value: value, Digest: digest}
	return nil
}
