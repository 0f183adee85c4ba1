package metric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/changedetect"
	"github.com/banshee-data/seismic-qa/internal/seismic/crosspower"
	"github.com/banshee-data/seismic-qa/internal/store/memstore"
)

// TestCoherenceOfChannelWithItselfIsOne is spec §8 scenario B: gamma^2(f) ==
// 1 for all f > 0 when X and Y are the same channel, so the band-averaged
// coherence equals 1 exactly.
func TestCoherenceOfChannelWithItselfIsOne(t *testing.T) {
	ch := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	meta := flatNoiseMeta("00", "LHZ", 1.0)
	samples := make([]int32, 8192)
	for i := range samples {
		samples[i] = int32((i*2654435761)%2001 - 1000)
	}
	data := ChannelDayData{ch: {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: seismic.ComputeDataDigest(0, 1_000_000, samples)}}}
	meta2 := map[seismic.ChannelKey]*seismic.ChannelMeta{ch: meta}

	c := NewCoherence("ChannelCoherence", 1)
	require.NoError(t, c.Set("period_low", 20.0))
	require.NoError(t, c.Set("period_high", 50.0))
	require.NoError(t, c.Set("channel_x", ch))
	require.NoError(t, c.Set("channel_y", ch))

	st := memstore.New()
	c.Bind(data, meta2, crosspower.NewEngine(), changedetect.New(st), seismic.StationKey{Network: "XX", Station: "AAA"}, seismic.Date{Year: 2026, Month: 1, Day: 1})

	result, err := c.Process(context.Background(), false)
	require.NoError(t, err)

	key := seismic.PairID(ch, ch)
	require.Contains(t, result.PerChannel, key)
	assert.InDelta(t, 1.0, result.PerChannel[key].Value, 1e-9)
}

// TestCoherencePairFailureReturnsEmptyResultNotError is spec §7: a
// semantic-precondition failure (here a sample-rate mismatch surfacing from
// crosspower.Compute) is fatal to the pair only; Process still returns a
// non-nil result and no error, rather than aborting.
func TestCoherencePairFailureReturnsEmptyResultNotError(t *testing.T) {
	x := seismic.ChannelKey{Location: "00", Code: "LHZ"}
	y := seismic.ChannelKey{Location: "00", Code: "LHN"}
	metaX := flatNoiseMeta("00", "LHZ", 1.0)
	metaY := flatNoiseMeta("00", "LHN", 2.0) // mismatched rate -> ErrSampleRateMismatch

	samples := make([]int32, 8192)
	for i := range samples {
		samples[i] = int32((i*2654435761)%2001 - 1000)
	}
	digest := seismic.ComputeDataDigest(0, 1_000_000, samples)
	data := ChannelDayData{
		x: {{StartTimeUs: 0, IntervalUs: 1_000_000, Samples: samples, DataDigest: digest}},
		y: {{StartTimeUs: 0, IntervalUs: 500_000, Samples: samples, DataDigest: digest}},
	}
	meta2 := map[seismic.ChannelKey]*seismic.ChannelMeta{x: metaX, y: metaY}

	c := NewCoherence("ChannelCoherence", 1)
	require.NoError(t, c.Set("period_low", 20.0))
	require.NoError(t, c.Set("period_high", 50.0))
	require.NoError(t, c.Set("channel_x", x))
	require.NoError(t, c.Set("channel_y", y))

	st := memstore.New()
	c.Bind(data, meta2, crosspower.NewEngine(), changedetect.New(st), seismic.StationKey{Network: "XX", Station: "AAA"}, seismic.Date{Year: 2026, Month: 1, Day: 1})

	result, err := c.Process(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotContains(t, result.PerChannel, seismic.PairID(x, y))
}

func TestCoherenceUnknownArgumentFails(t *testing.T) {
	c := NewCoherence("ChannelCoherence", 1)
	err := c.Set("not_declared", 1.0)
	require.ErrorIs(t, err, ErrUnknownArgument)
}
