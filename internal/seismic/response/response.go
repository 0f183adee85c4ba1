// Package response evaluates a channel's cascaded instrument response as a
// complex frequency response, with selectable output units (spec §4.2).
package response

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
)

// Sentinel errors for the semantic-precondition failures spec §7 assigns to
// response evaluation.
var (
	ErrInvalidResponse         = errors.New("response: channel response is invalid")
	ErrUnsupportedForPolynomial = errors.New("response: frequency response requested on a polynomial stage-1 channel")
	ErrUnknownStageType        = errors.New("response: unknown pole-zero stage type tag")
)

// Evaluate returns the complex frequency response of meta at each frequency
// in freqs, in outUnits, following the algorithm of spec §4.2. DC (index 0,
// if freqs[0] == 0) is forced to zero after scaling.
func Evaluate(meta *seismic.ChannelMeta, freqs []float64, outUnits seismic.OutputUnits) ([]complex128, error) {
	if !meta.Valid() {
		return nil, fmt.Errorf("%w: channel %s", ErrInvalidResponse, meta.Channel.String())
	}

	stage1, ok := meta.Stages[1]
	if !ok {
		return nil, fmt.Errorf("%w: missing stage 1", ErrInvalidResponse)
	}
	if stage1.Kind == seismic.StagePolynomial {
		return nil, fmt.Errorf("%w: channel %s", ErrUnsupportedForPolynomial, meta.Channel.String())
	}
	if stage1.Kind != seismic.StagePoleZero {
		return nil, fmt.Errorf("%w: stage 1 is not pole-zero", ErrInvalidResponse)
	}

	var sConst float64
	switch stage1.StageType {
	case seismic.StageTypeA:
		sConst = 2 * math.Pi
	case seismic.StageTypeB:
		sConst = 1
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStageType, rune(stage1.StageType))
	}

	out := make([]complex128, len(freqs))
	n := outUnits.UnitCode() - stage1.InputUnits.UnitCode()

	for i, f := range freqs {
		s := complex(0, sConst*f)
		resp := evalPoleZero(stage1, s)

		if n != 0 {
			resp *= unitConversionFactor(sConst, f, n)
		}

		out[i] = resp
	}

	scale, mismatchLogged := selectScale(meta)
	if mismatchLogged {
		monitoring.Warnf("response: sensitivity mismatch for channel %s exceeds 10%%, using G0 in place of G1*G2", meta.Channel.String())
	}
	if scale <= 0 {
		monitoring.Warnf("response: non-positive response scale %g for channel %s, proceeding anyway", scale, meta.Channel.String())
	}
	for i := range out {
		out[i] *= complex(scale, 0)
	}

	for i, f := range freqs {
		if f == 0 {
			out[i] = 0
		}
	}

	return out, nil
}

// evalPoleZero evaluates A0 * Prod(s - zk) / Prod(s - pk) (spec §4.2 step 2).
func evalPoleZero(stage seismic.ResponseStage, s complex128) complex128 {
	num := complex(stage.Normalization, 0)
	for _, z := range stage.Zeros {
		num *= s - z
	}
	den := complex(1, 0)
	for _, p := range stage.Poles {
		den *= s - p
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// unitConversionFactor returns (j*s*f)^n for n>0 (differentiation) or
// (-j/(s*f))^|n| for n<0 (integration), per spec §4.2 step 3. s here is the
// stage-type constant (2*pi for 'A', 1 for 'B'), distinct from the complex
// variable s used in evalPoleZero.
func unitConversionFactor(sConst, f float64, n int) complex128 {
	if n > 0 {
		factor := complex(0, sConst*f)
		return cmplx.Pow(factor, complex(float64(n), 0))
	}
	factor := complex(0, -1) / complex(sConst*f, 0)
	return cmplx.Pow(factor, complex(float64(-n), 0))
}

// selectScale returns the response scale factor: G1*G2 unless the §3
// sensitivity-mismatch test triggers, in which case G0 (spec §4.2 step 4).
// The second return reports whether the mismatch branch was taken so the
// caller can log the warning exactly once per evaluation.
func selectScale(meta *seismic.ChannelMeta) (float64, bool) {
	g0 := meta.Stages[0].Gain
	g1 := meta.Stages[1].Gain
	g2 := meta.Stages[2].Gain

	if meta.SensitivityMismatch() > 0.10 {
		return g0, true
	}
	return g1 * g2, false
}
