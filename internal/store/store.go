// Package store defines the four persistence operations spec.md §6 says
// are sufficient to implement the change-detection layer and to record
// metric results. The concrete relational store is an external collaborator
// per spec.md §1 — this package only fixes the interface shape; see
// internal/store/sqlite for a reference adapter.
package store

import (
	"context"

	"github.com/banshee-data/seismic-qa/internal/seismic"
)

// MetricRow is one channel's (or channel-pair's) value and digest, the
// per-row shape insert_metric_data writes (spec §6).
type MetricRow struct {
	ChannelID string
	Value     float64
	Digest    []byte
}

// Store is the persistence boundary the core consumes via exactly four
// operations (spec §6). Channel-id serialization is the "LOC,CODE" ASCII
// form from seismic.ChannelKey.String, or seismic.PairID for two-channel
// metrics. Dates are civil calendar days at UTC (seismic.Date).
type Store interface {
	// GetMetricDigest returns the station-level metric digest on record,
	// or nil if none exists.
	GetMetricDigest(ctx context.Context, date seismic.Date, metricName, station string) ([]byte, error)

	// GetMetricValueDigest returns the per-channel value digest on record,
	// or nil if none exists.
	GetMetricValueDigest(ctx context.Context, date seismic.Date, metricName, station, channelID string) ([]byte, error)

	// InsertMetricData persists one metric evaluation's rows.
	InsertMetricData(ctx context.Context, date seismic.Date, metricName, station string, rows []MetricRow) error

	// SelectAll returns an opaque bulk dump of everything recorded between
	// start and end, inclusive.
	SelectAll(ctx context.Context, start, end seismic.Date) ([]byte, error)
}
