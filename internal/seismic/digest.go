package seismic

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DigestAccumulator is the additive digest accumulator every fingerprintable
// entity exposes (spec §3). It buffers every byte written and hashes the
// buffer with SHA-256 in Sum; "additive" means callers mix fields in a fixed
// order and the final Sum is the hash of the concatenated byte stream, never a commutative combination — stable
// across process runs and architectures only if every caller writes fields
// in the same order with the same encoding, which is why every field write
// here pins an explicit endianness rather than relying on machine-native
// layout.
//
// Floats are written little-endian (8 bytes); lengths/counts are written
// big-endian (4 bytes) — the convention spec §3 requires verbatim.
type DigestAccumulator struct {
	h [32]byte
	w []byte
}

// NewDigestAccumulator returns an empty accumulator.
func NewDigestAccumulator() *DigestAccumulator {
	return &DigestAccumulator{w: make([]byte, 0, 256)}
}

// WriteFloat64 mixes in a little-endian IEEE-754 double.
func (d *DigestAccumulator) WriteFloat64(v float64) *DigestAccumulator {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	d.w = append(d.w, buf[:]...)
	return d
}

// WriteInt32 mixes in a big-endian 32-bit length/count field.
func (d *DigestAccumulator) WriteInt32(v int32) *DigestAccumulator {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	d.w = append(d.w, buf[:]...)
	return d
}

// WriteInt64 mixes in a big-endian 64-bit integer (sample rates expressed as
// microsecond intervals, epoch timestamps, decimation counters wider than
// 32 bits).
func (d *DigestAccumulator) WriteInt64(v int64) *DigestAccumulator {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	d.w = append(d.w, buf[:]...)
	return d
}

// WriteByte mixes in a single tag byte (stage-type tag, variant discriminant).
func (d *DigestAccumulator) WriteByte(v byte) *DigestAccumulator {
	d.w = append(d.w, v)
	return d
}

// WriteBytes mixes in a raw byte slice (an upstream data digest, a string's
// bytes) prefixed by its big-endian length so variable-length fields can't
// be confused for adjacent ones.
func (d *DigestAccumulator) WriteBytes(b []byte) *DigestAccumulator {
	d.WriteInt32(int32(len(b)))
	d.w = append(d.w, b...)
	return d
}

// WriteString mixes in a string's UTF-8 bytes, length-prefixed like WriteBytes.
func (d *DigestAccumulator) WriteString(s string) *DigestAccumulator {
	return d.WriteBytes([]byte(s))
}

// Sum finalizes the accumulator into a 32-byte SHA-256 digest. Sum does not
// mutate the accumulator; callers may keep writing and re-summing.
func (d *DigestAccumulator) Sum() []byte {
	sum := sha256.Sum256(d.w)
	return sum[:]
}

// MetadataDigest computes the stage-cascaded response digest for a
// ChannelMeta: sample rate, stage count, then for each stage in ascending
// key order: gain, gain-frequency, stage-type tag, and the variant-specific
// payload (spec §3).
func (m *ChannelMeta) MetadataDigest() []byte {
	acc := NewDigestAccumulator()
	acc.WriteFloat64(m.SampleRate)
	acc.WriteInt32(int32(len(m.Stages)))
	for _, idx := range m.SortedStageIndices() {
		st := m.Stages[idx]
		acc.WriteInt32(int32(idx))
		acc.WriteFloat64(st.Gain)
		acc.WriteFloat64(st.GainFrequency)
		acc.WriteByte(byte(st.Kind))
		switch st.Kind {
		case StagePoleZero:
			acc.WriteByte(byte(st.StageType))
			acc.WriteFloat64(st.Normalization)
			acc.WriteInt32(int32(len(st.Poles)))
			for _, p := range st.Poles {
				acc.WriteFloat64(real(p)).WriteFloat64(imag(p))
			}
			acc.WriteInt32(int32(len(st.Zeros)))
			for _, z := range st.Zeros {
				acc.WriteFloat64(real(z)).WriteFloat64(imag(z))
			}
		case StagePolynomial:
			acc.WriteFloat64(st.LowerBound).WriteFloat64(st.UpperBound)
			acc.WriteInt32(int32(len(st.Coefficients)))
			for _, c := range st.Coefficients {
				acc.WriteFloat64(c)
			}
		case StageDigital:
			acc.WriteFloat64(st.InputSampleRate)
			acc.WriteInt32(int32(st.Decimation))
		}
	}
	return acc.Sum()
}

// ComputeDataDigest computes the digest over a DataSet's raw sample stream
// (spec §3: "a digest over its bytes"). Ingestion is an external collaborator
// per spec.md §1 and normally stamps DataSet.DataDigest itself; this helper
// exists for fixtures and tests that synthesize DataSet values directly.
func ComputeDataDigest(startTimeUs, intervalUs int64, samples []int32) []byte {
	acc := NewDigestAccumulator()
	acc.WriteInt64(startTimeUs)
	acc.WriteInt64(intervalUs)
	acc.WriteInt32(int32(len(samples)))
	for _, s := range samples {
		acc.WriteInt32(s)
	}
	return acc.Sum()
}

// ValueDigest computes the value digest for one metric evaluation: the
// stable combination of the metadata digest of each involved channel and
// the data digest of each involved sample run (spec §3). Channels and data
// digests are mixed in the order given by the caller, which must be stable
// across runs (callers pass channels in a fixed, sorted order).
func ValueDigest(metas []*ChannelMeta, dataDigests [][]byte) []byte {
	acc := NewDigestAccumulator()
	acc.WriteInt32(int32(len(metas)))
	for _, m := range metas {
		acc.WriteBytes(m.MetadataDigest())
	}
	acc.WriteInt32(int32(len(dataDigests)))
	for _, d := range dataDigests {
		acc.WriteBytes(d)
	}
	return acc.Sum()
}
