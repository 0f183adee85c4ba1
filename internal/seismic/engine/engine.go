// Package engine wires the ingest, cross-power, change-detection, and metric
// packages into the station-day evaluation unit spec §5 describes: "one
// metric after another, one channel (or channel pair) after another ...
// each such unit owns an independent cross-power cache, response tree, and
// result buffer."
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/changedetect"
	"github.com/banshee-data/seismic-qa/internal/seismic/crosspower"
	"github.com/banshee-data/seismic-qa/internal/seismic/ingest"
	"github.com/banshee-data/seismic-qa/internal/seismic/metric"
	"github.com/banshee-data/seismic-qa/internal/store"
)

// Engine runs a configured set of metrics against a station's data and
// metadata providers, one station-day at a time (spec §5, §6).
type Engine struct {
	Data    ingest.DataProvider
	Meta    ingest.MetadataProvider
	Store   store.Store
	Metrics []metric.Metric

	// Locator resolves contiguous sample blocks for cross-power accumulation.
	// A nil Locator falls back to crosspower.NewEngine's default.
	Locator ingest.BlockLocator

	// TaperFraction and SmoothHalfWidth tune every metric's cross-power
	// engine for this run. When both are zero the cross-power package's own
	// defaults are used; otherwise both values are used as given.
	TaperFraction   float64
	SmoothHalfWidth int
}

// New returns an Engine backed by the given collaborators, using the
// cross-power package's default tuning. Each call to Run allocates a fresh
// cross-power cache and change-detector scoped to that single station-day,
// per spec §5's independence requirement.
func New(data ingest.DataProvider, meta ingest.MetadataProvider, st store.Store, metrics []metric.Metric) *Engine {
	return &Engine{Data: data, Meta: meta, Store: st, Metrics: metrics}
}

// NewWithTuning is like New but threads explicit cross-power tuning
// (taper fraction, smoothing half-width) into every metric's cross-power
// engine, per the run's configuration.
func NewWithTuning(data ingest.DataProvider, meta ingest.MetadataProvider, st store.Store, metrics []metric.Metric, taperFraction float64, smoothHalfWidth int) *Engine {
	return &Engine{
		Data: data, Meta: meta, Store: st, Metrics: metrics,
		TaperFraction: taperFraction, SmoothHalfWidth: smoothHalfWidth,
	}
}

// Run evaluates every configured metric for one station on one day and
// returns one MetricResult per metric that produced at least one emission.
// A metric whose whole channel set is unchanged (and force is false)
// contributes no result.
func (e *Engine) Run(ctx context.Context, station seismic.StationKey, date seismic.Date, force bool) ([]*seismic.MetricResult, error) {
	runID := uuid.New().String()
	monitoring.Infof("engine: run %s starting for %s/%s", runID, station, date)

	stationMeta, err := e.Meta.StationMeta(ctx, station, date)
	if err != nil {
		return nil, fmt.Errorf("engine: run %s: station metadata for %s/%s: %w", runID, station, date, err)
	}

	data := make(metric.ChannelDayData, len(stationMeta))
	for ch := range stationMeta {
		runs, err := e.Data.ChannelData(ctx, station, ch, date)
		if err != nil {
			return nil, fmt.Errorf("engine: run %s: channel data for %s %s/%s: %w", runID, ch, station, date, err)
		}
		data[ch] = runs
	}

	det := changedetect.New(e.Store)

	var results []*seismic.MetricResult
	for _, m := range e.Metrics {
		cp := e.newCrossPowerEngine()
		m.Bind(data, stationMeta, cp, det, station, date)

		result, err := m.Process(ctx, force)
		if err != nil {
			// Input-structural failures are fatal to this metric only; the
			// run continues with the next metric (spec §7), so prior
			// metrics' already-collected results are kept, not discarded.
			monitoring.Errorf("engine: run %s: metric %s failed for %s/%s: %v", runID, m.MetricName(), station, date, err)
			continue
		}
		if len(result.PerChannel) == 0 {
			monitoring.Debugf("engine: run %s: metric %s produced no emissions for %s/%s", runID, m.MetricName(), station, date)
			continue
		}

		rows := make([]store.MetricRow, 0, len(result.PerChannel))
		for id, v := range result.PerChannel {
			rows = append(rows, store.MetricRow{ChannelID: id, Value: v.Value, Digest: v.Digest})
		}
		if err := e.Store.InsertMetricData(ctx, date, m.MetricName(), station.String(), rows); err != nil {
			// A storage error is logged; the in-memory result is preserved
			// for the driver to retry (spec §7), not dropped.
			monitoring.Errorf("engine: run %s: persist metric %s for %s/%s failed, result preserved for retry: %v", runID, m.MetricName(), station, date, err)
			results = append(results, result)
			continue
		}

		results = append(results, result)
	}
	monitoring.Infof("engine: run %s finished for %s/%s with %d metric result(s)", runID, station, date, len(results))
	return results, nil
}

// newCrossPowerEngine allocates a fresh cross-power engine for one metric,
// using this run's block locator if set and its tuning unless both tuning
// fields are zero, falling back to the cross-power package's own defaults
// otherwise.
func (e *Engine) newCrossPowerEngine() *crosspower.Engine {
	locator := e.Locator
	if locator == nil {
		locator = ingest.DefaultBlockLocator{}
	}
	if e.TaperFraction == 0 && e.SmoothHalfWidth == 0 {
		return crosspower.NewEngineWithLocator(locator)
	}
	return crosspower.NewEngineWithTuning(locator, e.TaperFraction, e.SmoothHalfWidth)
}
