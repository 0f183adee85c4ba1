// Package crosspower computes the one-sided, smoothed, response-deconvolved
// cross-power spectral density for an ordered channel pair over a day, and
// memoizes results keyed by the unordered channel pair so multiple metrics
// can share one computation (spec §4.3).
package crosspower

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/ingest"
	"github.com/banshee-data/seismic-qa/internal/seismic/numerics"
	"github.com/banshee-data/seismic-qa/internal/seismic/response"
)

// Sentinel errors for the semantic-precondition failures spec §7 assigns to
// cross-power evaluation.
var (
	ErrSampleRateMismatch = errors.New("crosspower: channel sample rates differ")
	ErrZeroResponse       = errors.New("crosspower: zero response magnitude at a deconvolution bin")
)

const (
	defaultTaperFraction   = 0.10
	defaultSmoothHalfWidth = 5 // 11-bin boxcar
)

// CrossPower is the spectrum produced by Compute: a one-sided, smoothed PSD
// magnitude series plus the frequency spacing it was sampled at (spec §3).
type CrossPower struct {
	Spectrum []float64
	DF       float64
}

// ChannelSeries is one channel's sample runs plus the response metadata
// needed to deconvolve them.
type ChannelSeries struct {
	Key  seismic.ChannelKey
	Meta *seismic.ChannelMeta
	Runs []seismic.DataSet
}

// Engine computes and memoizes CrossPower results for one station-day. It is
// not safe for concurrent use — spec §5 scopes one cache to one metric run
// operating single-threaded within a station-day.
type Engine struct {
	locator         ingest.BlockLocator
	taperFraction   float64
	smoothHalfWidth int
	cache           map[pairKey]*CrossPower
}

type pairKey struct {
	lo, hi seismic.ChannelKey
}

// NewEngine returns an Engine with the default contiguous-block locator and
// default segmentation tuning (10% cosine taper, 11-bin boxcar smoothing).
func NewEngine() *Engine {
	return NewEngineWithTuning(ingest.DefaultBlockLocator{}, defaultTaperFraction, defaultSmoothHalfWidth)
}

// NewEngineWithLocator allows injecting an alternate BlockLocator, e.g. one
// backed by the real miniSEED-derived block index, with default tuning.
func NewEngineWithLocator(locator ingest.BlockLocator) *Engine {
	return NewEngineWithTuning(locator, defaultTaperFraction, defaultSmoothHalfWidth)
}

// NewEngineWithTuning allows overriding the locator and the segmentation
// tuning spec §9's config layer exposes (taper fraction, smoothing width).
func NewEngineWithTuning(locator ingest.BlockLocator, taperFraction float64, smoothHalfWidth int) *Engine {
	return &Engine{
		locator:         locator,
		taperFraction:   taperFraction,
		smoothHalfWidth: smoothHalfWidth,
		cache:           make(map[pairKey]*CrossPower),
	}
}

// Compute returns the cross-power spectrum for the unordered pair (x, y),
// computing it on first request and returning the cached result on any
// later request for (x, y) or (y, x) (spec §4.3, §3 cache invariant).
func (e *Engine) Compute(x, y ChannelSeries) (*CrossPower, error) {
	lo, hi := seismic.CanonicalPair(x.Key, y.Key)
	key := pairKey{lo: lo, hi: hi}
	if cached, ok := e.cache[key]; ok {
		return cached, nil
	}

	// Canonicalize the channel order passed to the numerical computation so
	// that (X,Y) and (Y,X) queries produce and cache the identical object.
	a, b := x, y
	if hi == x.Key {
		a, b = y, x
	}

	cp, err := e.computeUncached(a, b)
	if err != nil {
		return nil, err
	}
	e.cache[key] = cp
	return cp, nil
}

func (e *Engine) computeUncached(x, y ChannelSeries) (*CrossPower, error) {
	block := e.locator.LargestContiguousBlock(x.Runs, y.Runs)
	xs := ingest.ExtractWindow(x.Runs, block)
	ys := ingest.ExtractWindow(y.Runs, block)

	if len(xs) == 0 || len(ys) == 0 {
		monitoring.Warnf("crosspower: empty contiguous block between %s and %s, proceeding with computed arrays", x.Key, y.Key)
	}
	if len(xs) != len(ys) {
		monitoring.Warnf("crosspower: unequal extracted lengths (%d vs %d) between %s and %s, using common prefix", len(xs), len(ys), x.Key, y.Key)
		n := len(xs)
		if len(ys) < n {
			n = len(ys)
		}
		xs, ys = xs[:n], ys[:n]
	}

	if x.Meta.SampleRate != y.Meta.SampleRate {
		return nil, fmt.Errorf("%w: %s=%g %s=%g", ErrSampleRateMismatch, x.Key, x.Meta.SampleRate, y.Key, y.Meta.SampleRate)
	}
	srate := x.Meta.SampleRate
	if srate <= 0 {
		return nil, fmt.Errorf("%w: non-positive sample rate", ErrSampleRateMismatch)
	}
	dt := 1.0 / srate
	ndata := len(xs)
	if ndata == 0 {
		return &CrossPower{Spectrum: nil, DF: 0}, nil
	}

	nsegPnts := ndata / 4
	if nsegPnts < 2 {
		nsegPnts = ndata
	}
	noff := nsegPnts / 4
	if noff < 1 {
		noff = 1
	}
	nfft := numerics.NextPowerOfTwo(nsegPnts)
	df := 1.0 / (float64(nfft) * dt)
	nf := nfft/2 + 1

	sumCross := make([]complex128, nf)
	nWindows := 0
	var wss float64

	for start := 0; start+nsegPnts <= ndata; start += noff {
		segX := make([]float64, nsegPnts)
		segY := make([]float64, nsegPnts)
		copy(segX, xs[start:start+nsegPnts])
		copy(segY, ys[start:start+nsegPnts])

		numerics.Detrend(segX)
		numerics.Detrend(segY)
		numerics.Debias(segX)
		numerics.Debias(segY)
		// wss depends only on nsegPnts and e.taperFraction, so every segment
		// yields the same value; keep the last one as the taper-correction
		// reference (spec §4.3 step 5).
		wss = numerics.CosineTaper(segX, e.taperFraction)
		numerics.CosineTaper(segY, e.taperFraction)

		if wss == 0 {
			monitoring.Warnf("crosspower: taper window-sum-of-squares is zero for segment at %d", start)
		}

		padX := make([]float64, nfft)
		padY := make([]float64, nfft)
		copy(padX, segX)
		copy(padY, segY)

		fx, err := numerics.FFT2(padX)
		if err != nil {
			return nil, err
		}
		fy, err := numerics.FFT2(padY)
		if err != nil {
			return nil, err
		}

		for k := 0; k < nf; k++ {
			sumCross[k] += fx[k] * cmplx.Conj(fy[k])
		}
		nWindows++
	}

	if nWindows == 0 {
		return &CrossPower{Spectrum: make([]float64, nf), DF: df}, nil
	}

	// Normalize: divide by window count and taper correction, multiply by
	// the one-sided PSD factor (spec §4.3 step 5).
	taperCorrection := wss / float64(nsegPnts)
	psdFactor := 2 * dt / float64(nfft)

	cross := make([]complex128, nf)
	for k := range sumCross {
		c := sumCross[k] / complex(float64(nWindows), 0)
		if taperCorrection != 0 {
			c /= complex(taperCorrection, 0)
		}
		c *= complex(psdFactor, 0)
		cross[k] = c
	}

	// Retrieve per-channel responses at acceleration and deconvolve (spec
	// §4.3 step 6).
	freqs := make([]float64, nf)
	for k := range freqs {
		freqs[k] = float64(k) * df
	}
	rx, err := response.Evaluate(x.Meta, freqs, seismic.UnitsAcceleration)
	if err != nil {
		return nil, err
	}
	ry, err := response.Evaluate(y.Meta, freqs, seismic.UnitsAcceleration)
	if err != nil {
		return nil, err
	}

	deconv := make([]complex128, nf)
	for k := 1; k < nf; k++ {
		denom := rx[k] * cmplx.Conj(ry[k])
		if cmplx.Abs(denom) == 0 {
			return nil, fmt.Errorf("%w: bin %d", ErrZeroResponse, k)
		}
		deconv[k] = cross[k] / denom
	}

	spectrum := smooth(deconv, nf, e.smoothHalfWidth)
	spectrum[0] = 0

	return &CrossPower{Spectrum: spectrum, DF: df}, nil
}

// smooth applies a (2*halfWidth+1)-bin boxcar across frequency, averaging
// the complex deconvolved series over interior bins and taking the
// magnitude of that average once; boundary bins take the unsmoothed
// magnitude directly (spec §4.3 step 7). Averaging the complex values
// before the single final cmplx.Abs, rather than averaging per-bin
// magnitudes, preserves the phase cancellation the smoothing relies on.
func smooth(deconv []complex128, nf, halfWidth int) []float64 {
	out := make([]float64, nf)
	width := 2*halfWidth + 1
	for k := 0; k < nf; k++ {
		if k < halfWidth || k >= nf-halfWidth {
			out[k] = cmplx.Abs(deconv[k])
			continue
		}
		var sum complex128
		for j := k - halfWidth; j <= k+halfWidth; j++ {
			sum += deconv[j]
		}
		out[k] = cmplx.Abs(sum / complex(float64(width), 0))
	}
	return out
}
