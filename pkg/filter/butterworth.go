package filter

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// DefaultOrder is the Butterworth order used when none is configured.
const DefaultOrder = 2

var (
	// ErrCutoffOutOfRange is returned when the cutoff is not inside (0, Nyquist).
	ErrCutoffOutOfRange = errors.New("cutoff frequency out of range")
	// ErrInvalidSampleRate is returned for a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidOrder is returned for a filter order below 1.
	ErrInvalidOrder = errors.New("filter order must be at least 1")
)

// Kind selects the filter response.
type Kind int

const (
	LowPass Kind = iota
	HighPass
)

func (k Kind) String() string {
	switch k {
	case LowPass:
		return "low"
	case HighPass:
		return "high"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses "low"/"lowpass" or "high"/"highpass".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "lowpass", "lp":
		return LowPass, nil
	case "high", "highpass", "hp":
		return HighPass, nil
	}
	return 0, fmt.Errorf("unknown filter kind %q", s)
}

// Coefficients holds transfer function polynomials in descending powers of z^-1.
// A[0] is 1 for every design produced by this package.
type Coefficients struct {
	B []float64
	A []float64
}

// Design computes a digital Butterworth filter of the given order.
//
// The analog prototype poles are scaled to the pre-warped cutoff, transformed to
// high-pass if requested and mapped to the z-plane with the bilinear transform,
// which yields the same b/a pair as scipy.signal.butter(order, cutoff/nyquist, kind).
func Design(order int, cutoff, sampleRate float64, kind Kind) (Coefficients, error) {
	if order < 1 {
		return Coefficients{}, ErrInvalidOrder
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return Coefficients{}, ErrInvalidSampleRate
	}
	nyquist := 0.5 * sampleRate
	if !(cutoff > 0 && cutoff < nyquist) {
		return Coefficients{}, fmt.Errorf("%w: %g Hz (nyquist %g Hz)", ErrCutoffOutOfRange, cutoff, nyquist)
	}
	if kind != LowPass && kind != HighPass {
		return Coefficients{}, fmt.Errorf("unsupported filter kind %v", kind)
	}

	// Work with fs = 2 so that the normalized cutoff maps straight to the warped frequency.
	const fs = 2.0
	wn := cutoff / nyquist
	warped := 2 * fs * math.Tan(math.Pi*wn/fs)

	// Analog Butterworth prototype: unit circle poles in the left half plane.
	poles := make([]complex128, order)
	for i := range order {
		m := float64(-order + 1 + 2*i)
		poles[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}

	var zeros []complex128
	gain := 1.0
	switch kind {
	case LowPass:
		for i := range poles {
			poles[i] *= complex(warped, 0)
		}
		gain = math.Pow(warped, float64(order))
	case HighPass:
		prod := complex(1, 0)
		for i := range poles {
			prod *= -poles[i]
			poles[i] = complex(warped, 0) / poles[i]
		}
		zeros = make([]complex128, order)
		gain = real(1 / prod)
	}

	// Bilinear transform.
	fs2 := complex(2*fs, 0)
	num, den := complex(1, 0), complex(1, 0)
	zz := make([]complex128, 0, order)
	for _, z := range zeros {
		num *= fs2 - z
		zz = append(zz, (fs2+z)/(fs2-z))
	}
	pz := make([]complex128, order)
	for i, p := range poles {
		den *= fs2 - p
		pz[i] = (fs2 + p) / (fs2 - p)
	}
	for len(zz) < order {
		zz = append(zz, -1)
	}
	gain *= real(num / den)

	b := realPoly(zz)
	for i := range b {
		b[i] *= gain
	}
	return Coefficients{B: b, A: realPoly(pz)}, nil
}

// realPoly expands prod(1 - r*z^-1) and returns the real parts of its coefficients.
func realPoly(roots []complex128) []float64 {
	c := make([]complex128, len(roots)+1)
	c[0] = 1
	for i, r := range roots {
		for j := i + 1; j > 0; j-- {
			c[j] -= r * c[j-1]
		}
	}
	out := make([]float64, len(c))
	for i := range c {
		out[i] = real(c[i])
	}
	return out
}
