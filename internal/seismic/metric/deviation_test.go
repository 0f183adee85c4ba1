package metric

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/changedetect"
	"github.com/banshee-data/seismic-qa/internal/seismic/crosspower"
	"github.com/banshee-data/seismic-qa/internal/store"
	"github.com/banshee-data/seismic-qa/internal/store/memstore"
)

// toRows flattens a MetricResult into the []store.MetricRow shape
// InsertMetricData expects.
func toRows(r *seismic.MetricResult) []store.MetricRow {
	rows := make([]store.MetricRow, 0, len(r.PerChannel))
	for id, v := range r.PerChannel {
		rows = append(rows, store.MetricRow{ChannelID: id, Value: v.Value, Digest: v.Digest})
	}
	return rows
}

func writeModel(t *testing.T, lines string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func flatNoiseMeta(loc, code string, rate float64) *seismic.ChannelMeta {
	return &seismic.ChannelMeta{
		Channel:    seismic.ChannelKey{Location: loc, Code: code},
		SampleRate: rate,
		Stages: map[int]seismic.ResponseStage{
			0: {Kind: seismic.StagePoleZero, Gain: 1},
			1: {
				Kind:          seismic.StagePoleZero,
				Gain:          1,
				StageType:     seismic.StageTypeA,
				Normalization: 1,
				Poles:         []complex128{complex(-1, 0)},
				InputUnits:    seismic.UnitsVelocity,
			},
			2: {Kind: seismic.StagePoleZero, Gain: 1},
		},
	}
}

func TestLoadModelRejectsMalformedLine(t *testing.T) {
	path := writeModel(t, "1.0 -160\n2.0 -160 extra\n")
	_, err := NewDeviation("NLNMDeviationMetric", 1, path)
	require.ErrorIs(t, err, ErrMalformedModel)
}

func TestDeviationFlatChannelReturnsFiniteNumber(t *testing.T) {
	modelPath := writeModel(t, "10 -160\n20 -160\n30 -160\n40 -160\n50 -160\n60 -160\n")
	d, err := NewDeviation("NLNMDeviationMetric", 1, modelPath)
	require.NoError(t, err)
	require.NoError(t, d.Set("period_low", 20.0))
	require.NoError(t, d.Set("period_high", 50.0))

	ch := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	meta := flatNoiseMeta("00", "LHZ", 1.0)
	n := 8192
	samples := make([]int32, n)
	for i := range samples {
		// deterministic pseudo-noise, not true Gaussian, but nonzero and
		// non-constant so the PSD isn't identically zero
		samples[i] = int32((i*2654435761)%2001 - 1000)
	}
	data := ChannelDayData{ch: {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: seismic.ComputeDataDigest(0, 1_000_000, samples)}}}
	meta2 := map[seismic.ChannelKey]*seismic.ChannelMeta{ch: meta}

	st := memstore.New()
	det := changedetect.New(st)
	cp := crosspower.NewEngine()
	d.Bind(data, meta2, cp, det, seismic.StationKey{Network: "XX", Station: "AAA"}, seismic.Date{Year: 2026, Month: 1, Day: 1})

	result, err := d.Process(context.Background(), false)
	require.NoError(t, err)
	require.Contains(t, result.PerChannel, ch.String())
	v := result.PerChannel[ch.String()].Value
	assert.False(t, isNaNOrInf(v))
}

// TestDeviationEmptyBandSkipsChannelWithoutFailingProcess is spec §8
// scenario D/E territory: a semantic-precondition failure (here EmptyBand)
// is fatal to the failing channel only, not to Process as a whole (spec §7).
func TestDeviationEmptyBandSkipsChannelWithoutFailingProcess(t *testing.T) {
	modelPath := writeModel(t, "1000 -160\n2000 -160\n")
	d, err := NewDeviation("NLNMDeviationMetric", 1, modelPath)
	require.NoError(t, err)
	require.NoError(t, d.Set("period_low", 20.0))
	require.NoError(t, d.Set("period_high", 50.0))

	ch := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	meta := flatNoiseMeta("00", "LHZ", 1.0)
	samples := make([]int32, 8192)
	for i := range samples {
		samples[i] = int32(i % 7)
	}
	data := ChannelDayData{ch: {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: seismic.ComputeDataDigest(0, 1_000_000, samples)}}}
	meta2 := map[seismic.ChannelKey]*seismic.ChannelMeta{ch: meta}

	st := memstore.New()
	det := changedetect.New(st)
	cp := crosspower.NewEngine()
	d.Bind(data, meta2, cp, det, seismic.StationKey{Network: "XX", Station: "AAA"}, seismic.Date{Year: 2026, Month: 1, Day: 1})

	result, err := d.Process(context.Background(), false)
	require.NoError(t, err)
	assert.NotContains(t, result.PerChannel, ch.String())
}

// TestDeviationSiblingChannelProceedsAfterFailure is spec §8 scenario D:
// when one channel fails its per-channel evaluation (here because its
// response is invalid), sibling same-rate channels in the same metric
// still complete.
func TestDeviationSiblingChannelProceedsAfterFailure(t *testing.T) {
	modelPath := writeModel(t, "10 -160\n20 -160\n30 -160\n40 -160\n50 -160\n60 -160\n")
	d, err := NewDeviation("NLNMDeviationMetric", 1, modelPath)
	require.NoError(t, err)
	require.NoError(t, d.Set("period_low", 20.0))
	require.NoError(t, d.Set("period_high", 50.0))

	badCh := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	goodCh := seismic.ChannelKey{Location: "00", Code: "LHN"}

	badMeta := flatNoiseMeta("00", "LHZ", 1.0)
	delete(badMeta.Stages, 2) // Valid() fails -> response.Evaluate returns ErrInvalidResponse
	goodMeta := flatNoiseMeta("00", "LHN", 1.0)

	samples := make([]int32, 8192)
	for i := range samples {
		samples[i] = int32((i*2654435761)%2001 - 1000)
	}
	digest := seismic.ComputeDataDigest(0, 1_000_000, samples)
	data := ChannelDayData{
		badCh:  {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: digest}},
		goodCh: {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: digest}},
	}
	meta2 := map[seismic.ChannelKey]*seismic.ChannelMeta{badCh: badMeta, goodCh: goodMeta}

	st := memstore.New()
	det := changedetect.New(st)
	cp := crosspower.NewEngine()
	d.Bind(data, meta2, cp, det, seismic.StationKey{Network: "XX", Station: "AAA"}, seismic.Date{Year: 2026, Month: 1, Day: 1})

	result, err := d.Process(context.Background(), false)
	require.NoError(t, err)
	assert.NotContains(t, result.PerChannel, badCh.String())
	assert.Contains(t, result.PerChannel, goodCh.String())
}

// TestChangeDetectionIdempotence is spec §8 invariant 7: two consecutive
// metric passes on identical inputs emit on the first and skip on the
// second.
func TestChangeDetectionIdempotence(t *testing.T) {
	modelPath := writeModel(t, "10 -160\n20 -160\n30 -160\n40 -160\n50 -160\n60 -160\n")
	ch := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	meta := flatNoiseMeta("00", "LHZ", 1.0)
	samples := make([]int32, 8192)
	for i := range samples {
		samples[i] = int32((i*2654435761)%2001 - 1000)
	}
	data := ChannelDayData{ch: {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: seismic.ComputeDataDigest(0, 1_000_000, samples)}}}
	meta2 := map[seismic.ChannelKey]*seismic.ChannelMeta{ch: meta}
	st := memstore.New()
	station := seismic.StationKey{Network: "XX", Station: "AAA"}
	date := seismic.Date{Year: 2026, Month: 1, Day: 1}

	d1, err := NewDeviation("NLNMDeviationMetric", 1, modelPath)
	require.NoError(t, err)
	require.NoError(t, d1.Set("period_low", 20.0))
	require.NoError(t, d1.Set("period_high", 50.0))
	d1.Bind(data, meta2, crosspower.NewEngine(), changedetect.New(st), station, date)
	r1, err := d1.Process(context.Background(), false)
	require.NoError(t, err)
	require.Contains(t, r1.PerChannel, ch.String())
	require.NoError(t, st.InsertMetricData(context.Background(), date, d1.MetricName(), station.String(), toRows(r1)))

	d2, err := NewDeviation("NLNMDeviationMetric", 1, modelPath)
	require.NoError(t, err)
	require.NoError(t, d2.Set("period_low", 20.0))
	require.NoError(t, d2.Set("period_high", 50.0))
	d2.Bind(data, meta2, crosspower.NewEngine(), changedetect.New(st), station, date)
	r2, err := d2.Process(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, r2.PerChannel, "second pass over identical inputs must skip")
}

// TestResampleForAnalysisDecimatesAboveTarget is spec §4.4: a channel
// sampled faster than the configured rate is brought down to it before
// the PSD is computed; a channel at or below the target rate passes
// through untouched ("at 20 Hz sampling (or native)").
func TestResampleForAnalysisDecimatesAboveTarget(t *testing.T) {
	ch := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	meta := flatNoiseMeta("00", "LHZ", 40.0)
	samples := make([]int32, 100)
	for i := range samples {
		samples[i] = int32(i)
	}
	series := crosspower.ChannelSeries{Key: ch, Meta: meta, Runs: []seismic.DataSet{
		{StartTimeUs: 0, IntervalUs: 25_000, Samples: samples},
	}}

	out := resampleForAnalysis(series, 20.0)
	require.Len(t, out.Runs, 1)
	assert.Equal(t, 50, len(out.Runs[0].Samples), "40Hz decimated to 20Hz halves the sample count")
	assert.Equal(t, int64(50_000), out.Runs[0].IntervalUs)
	assert.InDelta(t, 20.0, out.Meta.SampleRate, 1e-9)
	// Boxcar-averaged pair (0,1) -> 0, consistent with integer averaging.
	assert.Equal(t, int32(0), out.Runs[0].Samples[0])
}

func TestResampleForAnalysisPassesThroughAtOrBelowTarget(t *testing.T) {
	ch := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	meta := flatNoiseMeta("00", "LHZ", 1.0)
	samples := []int32{1, 2, 3, 4}
	series := crosspower.ChannelSeries{Key: ch, Meta: meta, Runs: []seismic.DataSet{
		{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples},
	}}

	out := resampleForAnalysis(series, 20.0)
	assert.Equal(t, series.Runs[0].Samples, out.Runs[0].Samples)
	assert.Equal(t, 1.0, out.Meta.SampleRate)
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}
