// Package changedetect implements the combined digest comparison that lets
// the metric framework skip evaluations whose inputs have not changed since
// the last run (spec §4.5).
package changedetect

import (
	"bytes"
	"context"
	"fmt"

	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/store"
)

// Detector wraps a store.Store with the two operations spec §4.5 exposes to
// metrics.
type Detector struct {
	Store store.Store
}

// New returns a Detector backed by s.
func New(s store.Store) *Detector {
	return &Detector{Store: s}
}

// ValueDigestChanged computes the combined (data ⊕ metadata) digest for
// (date, metricName, station, channelID) and compares it with the digest
// the store has on record. It returns the new digest when different (or
// when force is true), or nil when the digests match and force is false
// (spec §4.5).
func (d *Detector) ValueDigestChanged(ctx context.Context, date seismic.Date, metricName, station, channelID string, metas []*seismic.ChannelMeta, dataDigests [][]byte, force bool) ([]byte, error) {
	newDigest := seismic.ValueDigest(metas, dataDigests)

	if force {
		return newDigest, nil
	}

	prev, err := d.Store.GetMetricValueDigest(ctx, date, metricName, station, channelID)
	if err != nil {
		return nil, fmt.Errorf("changedetect: get metric value digest: %w", err)
	}
	if bytes.Equal(prev, newDigest) {
		return nil, nil
	}
	return newDigest, nil
}

// HashChanged is the coarser predicate spec §4.5 describes as "used by
// older metrics": it compares against the station-level digest (the same
// channel-id + value-digest encoding GetMetricDigest folds every recorded
// channel into) rather than this channel's own recorded value digest. For a
// metric with exactly one channel the two coincide; for a multi-channel
// metric a mismatch here only says something changed somewhere in the
// metric's whole channel set for this station-day, not that this
// particular channel did — the coarseness the older callers relied on.
func (d *Detector) HashChanged(ctx context.Context, date seismic.Date, metricName, station string, meta *seismic.ChannelMeta, dataDigest []byte) (bool, error) {
	prev, err := d.Store.GetMetricDigest(ctx, date, metricName, station)
	if err != nil {
		return false, fmt.Errorf("changedetect: get metric digest: %w", err)
	}
	valueDigest := seismic.ValueDigest([]*seismic.ChannelMeta{meta}, [][]byte{dataDigest})
	combined := seismic.NewDigestAccumulator().WriteString(meta.Channel.String()).WriteBytes(valueDigest).Sum()
	return !bytes.Equal(prev, combined), nil
}
