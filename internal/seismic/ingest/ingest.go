// Package ingest defines the external-collaborator interfaces spec.md §1
// and §6 deliberately keep outside the core: sample-array and response-tree
// providers, and the contiguous-block locator. A reference in-memory block
// locator is included because spec §4.3 step 1 specifies its semantics
// precisely enough to be worth a default implementation, even though the
// miniSEED parsing that produces real sample arrays stays external.
package ingest

import (
	"context"

	"github.com/banshee-data/seismic-qa/internal/seismic"
)

// DataProvider hands the pipeline a day's ordered sample runs for a channel
// (spec §6, "Data ingress").
type DataProvider interface {
	ChannelData(ctx context.Context, station seismic.StationKey, channel seismic.ChannelKey, date seismic.Date) ([]seismic.DataSet, error)
}

// MetadataProvider hands the pipeline a station's response tree for a day
// (spec §6, "Metadata ingress").
type MetadataProvider interface {
	StationMeta(ctx context.Context, station seismic.StationKey, date seismic.Date) (map[seismic.ChannelKey]*seismic.ChannelMeta, error)
}

// BlockLocator finds the largest contiguous interval over which two
// channel-day sample lists overlap (spec §4.3 step 1, §3 "ContiguousBlock").
type BlockLocator interface {
	LargestContiguousBlock(a, b []seismic.DataSet) seismic.ContiguousBlock
}

// DefaultBlockLocator is a reference BlockLocator: it intersects every pair
// of runs from the two lists and keeps the longest resulting interval.
type DefaultBlockLocator struct{}

// LargestContiguousBlock implements BlockLocator.
func (DefaultBlockLocator) LargestContiguousBlock(a, b []seismic.DataSet) seismic.ContiguousBlock {
	var best seismic.ContiguousBlock
	for _, ra := range a {
		for _, rb := range b {
			start := ra.StartTimeUs
			if rb.StartTimeUs > start {
				start = rb.StartTimeUs
			}
			end := ra.EndTimeUs()
			if rb.EndTimeUs() < end {
				end = rb.EndTimeUs()
			}
			if end <= start {
				continue
			}
			if (end - start) > best.DurationUs() {
				best = seismic.ContiguousBlock{StartTimeUs: start, EndTimeUs: end}
			}
		}
	}
	return best
}

// ExtractWindow returns the real-valued samples of runs that fall within
// block, concatenated in run order. Samples outside block are dropped; a
// run with no overlap contributes nothing.
func ExtractWindow(runs []seismic.DataSet, block seismic.ContiguousBlock) []float64 {
	var out []float64
	for _, r := range runs {
		start := r.StartTimeUs
		for i, s := range r.Samples {
			t := start + int64(i)*r.IntervalUs
			if t < block.StartTimeUs || t >= block.EndTimeUs {
				continue
			}
			out = append(out, float64(s))
		}
	}
	return out
}
