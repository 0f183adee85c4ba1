// Package seismic holds the channel/station data model and the digest
// accumulator shared by every stage of the QA pipeline: numerics, response,
// crosspower, metric, and changedetect all import this package rather than
// each other.
package seismic

import "fmt"

// ChannelKey is the hashable identity of a channel: a two-character site
// slot plus a three-character band/instrument/orientation code.
type ChannelKey struct {
	Location string
	Code     string
}

// String renders the canonical "LOC,CODE" channel-id form used in
// MetricResult.PerChannel keys and persistence calls (spec §3, §6).
func (k ChannelKey) String() string {
	return fmt.Sprintf("%s,%s", k.Location, k.Code)
}

// Less gives the canonical lexicographic ordering over (Location, Code)
// used to canonicalize unordered channel pairs before cache lookups or
// inserts (spec §9: "a canonical ordering ... applied on insertion and
// lookup to avoid duplicate entries").
func (k ChannelKey) Less(other ChannelKey) bool {
	if k.Location != other.Location {
		return k.Location < other.Location
	}
	return k.Code < other.Code
}

// Channel is a ChannelKey plus its semantic role, i.e. whether the second
// code character flags it as a seismic sensor requiring a full response
// (spec §3: "a seismic channel (second code character in {H, N})").
type Channel struct {
	ChannelKey
}

// IsSeismic reports whether this channel's instrument code marks it as a
// seismometer (high-gain H or accelerometer N band), which must carry a
// valid three-stage response per spec §3.
func (c Channel) IsSeismic() bool {
	if len(c.Code) < 2 {
		return false
	}
	switch c.Code[1] {
	case 'H', 'N':
		return true
	default:
		return false
	}
}

// CanonicalPair returns a, b reordered so that a.Less(b) (or a == b),
// giving the canonical key for the unordered-pair cross-power cache.
func CanonicalPair(a, b ChannelKey) (ChannelKey, ChannelKey) {
	if b.Less(a) {
		return b, a
	}
	return a, b
}

// PairID renders the canonicalized ordered-pair channel-id string used for
// two-channel metric results (spec §3: "a canonicalized ordered pair for
// two-channel metrics").
func PairID(a, b ChannelKey) string {
	lo, hi := CanonicalPair(a, b)
	return fmt.Sprintf("%s|%s", lo.String(), hi.String())
}

// StationKey identifies a station as (network, station).
type StationKey struct {
	Network string
	Station string
}

func (s StationKey) String() string {
	return fmt.Sprintf("%s.%s", s.Network, s.Station)
}

// OutputUnits selects the physical unit a response is evaluated in.
type OutputUnits int

const (
	UnitsNative OutputUnits = iota
	UnitsDisplacement
	UnitsVelocity
	UnitsAcceleration
)

// unitCode maps an OutputUnits value to the integer unit code used in the
// response-model differentiation/integration order computation (spec §4.2:
// "n = out_units_code - stage1_input_units_code").
func (u OutputUnits) unitCode() int {
	switch u {
	case UnitsDisplacement:
		return 1
	case UnitsVelocity:
		return 2
	case UnitsAcceleration:
		return 3
	default:
		return 0
	}
}

// UnitCode exposes unitCode to the response package.
func (u OutputUnits) UnitCode() int { return u.unitCode() }

// StageType distinguishes the two pole-zero frequency conventions.
type StageType byte

const (
	StageTypeA StageType = 'A' // rad/s convention: s = j*2*pi*f
	StageTypeB StageType = 'B' // Hz convention: s = j*f
)

// ResponseStageKind tags which variant of ResponseStage is populated.
type ResponseStageKind int

const (
	StagePoleZero ResponseStageKind = iota
	StagePolynomial
	StageDigital
)

// ResponseStage is a tagged union over the three stage variants from
// spec §3. Only the fields matching Kind are meaningful.
type ResponseStage struct {
	Kind ResponseStageKind

	// Common to every stage.
	Gain          float64
	GainFrequency float64
	InputUnits    OutputUnits
	OutputUnits   OutputUnits

	// PoleZero
	StageType     StageType
	Normalization float64
	Poles         []complex128
	Zeros         []complex128

	// Polynomial
	LowerBound     float64
	UpperBound     float64
	Coefficients   []float64

	// Digital
	InputSampleRate float64
	Decimation      int
}

// ChannelMeta is the response tree and epoch metadata for one channel on one
// day, keyed by stage index (conventionally 0=sensitivity, 1=analog stage,
// 2=digital gain) per spec §3.
type ChannelMeta struct {
	Station StationKey
	Channel ChannelKey

	SampleRate float64
	Dip        float64
	Azimuth    float64
	Depth      float64

	InstrumentType string
	Flags          string

	EpochStartUs int64
	DayBreak     bool

	Stages map[int]ResponseStage
}

// SortedStageIndices returns the stage-index keys of Stages in ascending
// order, the "key order" spec §3 requires for digest mixing.
func (m *ChannelMeta) SortedStageIndices() []int {
	idx := make([]int, 0, len(m.Stages))
	for k := range m.Stages {
		idx = append(idx, k)
	}
	// Small maps (3 stages typical); insertion sort keeps this allocation-free
	// and avoids pulling in sort for three elements in the common case.
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && idx[j-1] > idx[j]; j-- {
			idx[j-1], idx[j] = idx[j], idx[j-1]
		}
	}
	return idx
}

// Valid reports whether the channel carries the three-stage response a
// seismic channel requires: stages 0, 1, 2 all present with positive gain
// (spec §3 invariant). A channel that is not seismic (Channel.IsSeismic) is
// not held to this invariant and always reports true.
func (m *ChannelMeta) Valid() bool {
	if !(Channel{ChannelKey: m.Channel}).IsSeismic() {
		return true
	}
	for _, idx := range [3]int{0, 1, 2} {
		st, ok := m.Stages[idx]
		if !ok || st.Gain <= 0 {
			return false
		}
	}
	return true
}

// SensitivityMismatch computes the fractional mismatch |G0 - G1*G2| / G0
// between the overall sensitivity (stage 0) and the cascaded stage 1/2
// gains (spec §3). Returns 0 if stage 0 gain is 0 or stages are missing.
func (m *ChannelMeta) SensitivityMismatch() float64 {
	g0, ok0 := m.Stages[0]
	g1, ok1 := m.Stages[1]
	g2, ok2 := m.Stages[2]
	if !ok0 || !ok1 || !ok2 || g0.Gain == 0 {
		return 0
	}
	cascaded := g1.Gain * g2.Gain
	diff := g0.Gain - cascaded
	if diff < 0 {
		diff = -diff
	}
	return diff / g0.Gain
}

// DataSet is a contiguous run of integer samples.
type DataSet struct {
	StartTimeUs  int64
	IntervalUs   int64
	Samples      []int32
	DataDigest   []byte
}

// EndTimeUs returns the time just past the last sample in the run.
func (d *DataSet) EndTimeUs() int64 {
	return d.StartTimeUs + int64(len(d.Samples))*d.IntervalUs
}

// ContiguousBlock is the intersection interval across two or more channel
// sample lists (spec §3, §4.3 step 1).
type ContiguousBlock struct {
	StartTimeUs int64
	EndTimeUs   int64
}

// DurationUs returns the block's length in microseconds, zero or negative
// for an empty/invalid block.
func (b ContiguousBlock) DurationUs() int64 {
	return b.EndTimeUs - b.StartTimeUs
}

// MetricResult is the per-station, per-day output of one metric evaluation
// (spec §3).
type MetricResult struct {
	Date       Date
	MetricName string
	Station    StationKey
	PerChannel map[string]MetricValue
}

// MetricValue is a single channel's (or channel-pair's) metric output.
type MetricValue struct {
	Value  float64
	Digest []byte
}

// NewMetricResult allocates an empty result ready for PerChannel inserts.
func NewMetricResult(date Date, metricName string, station StationKey) *MetricResult {
	return &MetricResult{
		Date:       date,
		MetricName: metricName,
		Station:    station,
		PerChannel: make(map[string]MetricValue),
	}
}
