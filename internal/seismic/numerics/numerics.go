// Package numerics implements the primitive operations on real sequences
// the QA pipeline builds on: linear detrend, mean removal, cosine tapering
// with window-sum-of-squares accounting, linear interpolation onto a target
// abscissa, and a one-sided forward FFT (spec §4.1).
package numerics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// ErrNotPowerOfTwo is returned by FFT2 when the input length is not a
// power of two.
var ErrNotPowerOfTwo = errors.New("numerics: input length is not a power of two")

// Detrend removes the best-fit least-squares line from x in place, using
// gonum's ordinary least squares regression against the sample index as
// the independent variable.
func Detrend(x []float64) {
	n := len(x)
	if n < 2 {
		return
	}
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(idx, x, nil, false)
	for i := range x {
		x[i] -= alpha + beta*idx[i]
	}
}

// Debias subtracts the arithmetic mean from x in place.
func Debias(x []float64) {
	if len(x) == 0 {
		return
	}
	mean := stat.Mean(x, nil)
	for i := range x {
		x[i] -= mean
	}
}

// CosineTaper applies a half-cosine ramp over the first and last
// floor(p*N)+1 samples of x in place, for 0 < p <= 0.5, and returns the
// window-sum-of-squares used later to correct the power lost to tapering
// (spec §4.1; for p=0.10 this is approximately 0.875*N).
func CosineTaper(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 || p <= 0 || p > 0.5 {
		return 0
	}
	m := int(p*float64(n)) + 1
	if m > n {
		m = n
	}
	var rampSq float64
	for i := 0; i < m; i++ {
		w := 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(m)))
		x[i] *= w
		x[n-1-i] *= w
		rampSq += w * w
	}
	// Interior samples carry window weight 1; both tapered edges contribute
	// the same rampSq by symmetry of the half-cosine window.
	return 2*rampSq + float64(n-2*m)
}

// Interpolate produces, given source (x, y) and target abscissa xq, linearly
// interpolated values of the same length as xq (spec §4.1). Both x and xq
// must be monotonically non-decreasing; values of xq outside [x[0],
// x[len(x)-1]] clamp to the nearest endpoint rather than extrapolating.
func Interpolate(x, y, xq []float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, errors.New("numerics: interpolate: x and y length mismatch")
	}
	if len(x) == 0 {
		return nil, errors.New("numerics: interpolate: empty source series")
	}
	if len(x) == 1 {
		out := make([]float64, len(xq))
		for i := range out {
			out[i] = y[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(x, y); err != nil {
		return nil, err
	}

	lo, hi := x[0], x[len(x)-1]
	out := make([]float64, len(xq))
	for i, xv := range xq {
		clamped := xv
		if clamped < lo {
			clamped = lo
		} else if clamped > hi {
			clamped = hi
		}
		out[i] = pl.Predict(clamped)
	}
	return out, nil
}

// FFT2 accepts a real input whose length is a power of two and returns the
// N/2+1 non-negative-frequency complex bins including DC and Nyquist (spec
// §4.1). The inverse transform is not required by the core.
func FFT2(x []float64) ([]complex128, error) {
	n := len(x)
	if n == 0 || n&(n-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	fft := fourier.NewFFT(n)
	return fft.Coefficients(nil, x), nil
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
