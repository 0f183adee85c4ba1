package seismic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestAccumulatorDeterministic(t *testing.T) {
	build := func() []byte {
		return NewDigestAccumulator().
			WriteFloat64(1.5).
			WriteInt32(7).
			WriteInt64(1234567890).
			WriteByte('A').
			WriteBytes([]byte{1, 2, 3}).
			WriteString("LHZ").
			Sum()
	}
	assert.Equal(t, build(), build())
}

func TestDigestAccumulatorFieldOrderMatters(t *testing.T) {
	a := NewDigestAccumulator().WriteInt32(1).WriteInt32(2).Sum()
	b := NewDigestAccumulator().WriteInt32(2).WriteInt32(1).Sum()
	assert.NotEqual(t, a, b)
}

func polynomialMeta(coeffs []float64) *ChannelMeta {
	return &ChannelMeta{
		Station:    StationKey{Network: "XX", Station: "AAA"},
		Channel:    ChannelKey{Location: "00", Code: "VMZ"},
		SampleRate: 1.0,
		Stages: map[int]ResponseStage{
			0: {Kind: StagePoleZero, Gain: 1},
			1: {Kind: StagePolynomial, Gain: 1, LowerBound: -1, UpperBound: 1, Coefficients: coeffs},
		},
	}
}

// TestPolynomialChannelDigestComputesAndDiffers is spec §8 scenario E: a
// mass-position channel with only B058 + B062 stages. response() fails with
// ErrUnsupportedForPolynomial (see response_test.go), but its metadata
// digest still computes and differs from a pole-zero channel's.
func TestPolynomialChannelDigestComputesAndDiffers(t *testing.T) {
	poly := polynomialMeta([]float64{0.1, 0.2, 0.3})
	poleZero := threeStagePoleZeroMeta()

	polyDigest := poly.MetadataDigest()
	assert.NotEmpty(t, polyDigest)
	assert.NotEqual(t, polyDigest, poleZero.MetadataDigest())
}

func TestPolynomialDigestSensitiveToCoefficients(t *testing.T) {
	a := polynomialMeta([]float64{0.1, 0.2, 0.3})
	b := polynomialMeta([]float64{0.1, 0.2, 0.4})
	assert.NotEqual(t, a.MetadataDigest(), b.MetadataDigest())
}

func TestPolynomialDigestSensitiveToBounds(t *testing.T) {
	a := polynomialMeta([]float64{0.1, 0.2})
	b := polynomialMeta([]float64{0.1, 0.2})
	b.Stages[1] = ResponseStage{Kind: StagePolynomial, Gain: 1, LowerBound: -2, UpperBound: 1, Coefficients: []float64{0.1, 0.2}}
	assert.NotEqual(t, a.MetadataDigest(), b.MetadataDigest())
}

func TestMetadataDigestStableAcrossCalls(t *testing.T) {
	meta := threeStagePoleZeroMeta()
	assert.Equal(t, meta.MetadataDigest(), meta.MetadataDigest())
}

func TestComputeDataDigestDiffersOnSampleMutation(t *testing.T) {
	a := ComputeDataDigest(0, 1_000_000, []int32{1, 2, 3})
	b := ComputeDataDigest(0, 1_000_000, []int32{1, 2, 4})
	assert.NotEqual(t, a, b)
}

func TestComputeDataDigestSameInputsSameDigest(t *testing.T) {
	a := ComputeDataDigest(1000, 1_000_000, []int32{1, 2, 3})
	b := ComputeDataDigest(1000, 1_000_000, []int32{1, 2, 3})
	assert.Equal(t, a, b)
}

// TestValueDigestMutatingOneChannelChangesOnlyThatValue mirrors spec §8
// scenario C at the digest-combination layer: changing one channel's
// metadata leaves a value digest built from a different, untouched channel
// unaffected.
func TestValueDigestMutatingOneChannelChangesOnlyThatValue(t *testing.T) {
	chA := threeStagePoleZeroMeta()
	chB := threeStagePoleZeroMeta()
	chB.Channel = ChannelKey{Location: "00", Code: "LHN"}

	dataA := ComputeDataDigest(0, 1_000_000, []int32{1, 2, 3})
	dataB := ComputeDataDigest(0, 1_000_000, []int32{4, 5, 6})

	before := ValueDigest([]*ChannelMeta{chB}, [][]byte{dataB})

	// Mutate chA's stage-0 gain only; chB's digest must be unaffected.
	st0 := chA.Stages[0]
	st0.Gain = 2
	chA.Stages[0] = st0

	after := ValueDigest([]*ChannelMeta{chB}, [][]byte{dataB})
	assert.Equal(t, before, after)

	mutatedA := ValueDigest([]*ChannelMeta{chA}, [][]byte{dataA})
	unmutated := ValueDigest([]*ChannelMeta{threeStagePoleZeroMeta()}, [][]byte{dataA})
	assert.NotEqual(t, mutatedA, unmutated)
}
