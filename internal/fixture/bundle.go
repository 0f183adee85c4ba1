// Package fixture is a JSON-file-backed ingest.DataProvider and
// ingest.MetadataProvider, standing in for the miniSEED/dataless-SEED
// readers spec.md §1 keeps external. It exists so cmd/seismic-qa has
// something runnable end to end without a live data feed.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/seismic-qa/internal/seismic"
)

// StageJSON is the on-disk shape of one ResponseStage.
type StageJSON struct {
	Kind            string      `json:"kind"` // "pole_zero", "polynomial", "digital"
	Gain            float64     `json:"gain"`
	GainFrequency   float64     `json:"gain_frequency"`
	InputUnits      string      `json:"input_units,omitempty"`
	OutputUnits     string      `json:"output_units,omitempty"`
	StageType       string      `json:"stage_type,omitempty"` // "A" or "B"
	Normalization   float64     `json:"normalization,omitempty"`
	Poles           [][2]float64 `json:"poles,omitempty"`
	Zeros           [][2]float64 `json:"zeros,omitempty"`
	LowerBound      float64     `json:"lower_bound,omitempty"`
	UpperBound      float64     `json:"upper_bound,omitempty"`
	Coefficients    []float64   `json:"coefficients,omitempty"`
	InputSampleRate float64     `json:"input_sample_rate,omitempty"`
	Decimation      int         `json:"decimation,omitempty"`
}

// ChannelJSON is the on-disk shape of one channel's metadata and sample data
// for a station-day.
type ChannelJSON struct {
	Location   string               `json:"location"`
	Code       string               `json:"code"`
	SampleRate float64              `json:"sample_rate"`
	Stages     map[string]StageJSON `json:"stages"` // keyed by stage index, e.g. "0", "1", "2"
	Runs       []RunJSON            `json:"runs"`
}

// RunJSON is one contiguous sample run.
type RunJSON struct {
	StartTimeUs int64   `json:"start_time_us"`
	IntervalUs  int64   `json:"interval_us"`
	Samples     []int32 `json:"samples"`
}

// Bundle is the on-disk shape of a full station-day: network/station plus
// every channel's metadata and data.
type Bundle struct {
	Network  string        `json:"network"`
	Station  string        `json:"station"`
	Channels []ChannelJSON `json:"channels"`
}

// Load parses a Bundle from a JSON file.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %q: %w", path, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("fixture: parse %q: %w", path, err)
	}
	return &b, nil
}

func unitsFromString(s string) seismic.OutputUnits {
	switch s {
	case "displacement":
		return seismic.UnitsDisplacement
	case "velocity":
		return seismic.UnitsVelocity
	case "acceleration":
		return seismic.UnitsAcceleration
	default:
		return seismic.UnitsNative
	}
}

func stageKindFromString(s string) seismic.ResponseStageKind {
	switch s {
	case "polynomial":
		return seismic.StagePolynomial
	case "digital":
		return seismic.StageDigital
	default:
		return seismic.StagePoleZero
	}
}

func complexPairs(pairs [][2]float64) []complex128 {
	out := make([]complex128, len(pairs))
	for i, p := range pairs {
		out[i] = complex(p[0], p[1])
	}
	return out
}

// Provider implements ingest.DataProvider and ingest.MetadataProvider over a
// single in-memory Bundle, ignoring the requested station/date (a fixture
// bundle is already scoped to one station-day).
type Provider struct {
	meta map[seismic.ChannelKey]*seismic.ChannelMeta
	data map[seismic.ChannelKey][]seismic.DataSet
}

// NewProvider converts a Bundle into the shapes the pipeline consumes,
// stamping each run's DataDigest via seismic.ComputeDataDigest.
func NewProvider(b *Bundle) *Provider {
	p := &Provider{
		meta: make(map[seismic.ChannelKey]*seismic.ChannelMeta, len(b.Channels)),
		data: make(map[seismic.ChannelKey][]seismic.DataSet, len(b.Channels)),
	}
	station := seismic.StationKey{Network: b.Network, Station: b.Station}
	for _, ch := range b.Channels {
		key := seismic.ChannelKey{Location: ch.Location, Code: ch.Code}
		meta := &seismic.ChannelMeta{
			Station:    station,
			Channel:    key,
			SampleRate: ch.SampleRate,
			Stages:     make(map[int]seismic.ResponseStage, len(ch.Stages)),
		}
		for idxStr, st := range ch.Stages {
			var idx int
			fmt.Sscanf(idxStr, "%d", &idx)
			meta.Stages[idx] = seismic.ResponseStage{
				Kind:            stageKindFromString(st.Kind),
				Gain:            st.Gain,
				GainFrequency:   st.GainFrequency,
				InputUnits:      unitsFromString(st.InputUnits),
				OutputUnits:     unitsFromString(st.OutputUnits),
				StageType:       seismic.StageType(firstByteOr(st.StageType, 'A')),
				Normalization:   st.Normalization,
				Poles:           complexPairs(st.Poles),
				Zeros:           complexPairs(st.Zeros),
				LowerBound:      st.LowerBound,
				UpperBound:      st.UpperBound,
				Coefficients:    st.Coefficients,
				InputSampleRate: st.InputSampleRate,
				Decimation:      st.Decimation,
			}
		}
		p.meta[key] = meta

		runs := make([]seismic.DataSet, len(ch.Runs))
		for i, r := range ch.Runs {
			runs[i] = seismic.DataSet{
				StartTimeUs: r.StartTimeUs,
				IntervalUs:  r.IntervalUs,
				Samples:     r.Samples,
				DataDigest:  seismic.ComputeDataDigest(r.StartTimeUs, r.IntervalUs, r.Samples),
			}
		}
		p.data[key] = runs
	}
	return p
}

func firstByteOr(s string, fallback byte) byte {
	if len(s) == 0 {
		return fallback
	}
	return s[0]
}

// ChannelData implements ingest.DataProvider.
func (p *Provider) ChannelData(ctx context.Context, station seismic.StationKey, channel seismic.ChannelKey, date seismic.Date) ([]seismic.DataSet, error) {
	return p.data[channel], nil
}

// StationMeta implements ingest.MetadataProvider.
func (p *Provider) StationMeta(ctx context.Context, station seismic.StationKey, date seismic.Date) (map[seismic.ChannelKey]*seismic.ChannelMeta, error) {
	return p.meta, nil
}
