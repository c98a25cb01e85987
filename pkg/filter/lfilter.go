package filter

import (
	"errors"
	"sync"
)

// LFilter runs x through the rational transfer function b/a using the direct
// form II transposed structure. zi is the initial delay line state of length
// max(len(a), len(b))-1, or nil for a zero state. The final state is returned
// so a caller can continue filtering the next block.
func LFilter(b, a, x, zi []float64) (y, zf []float64, err error) {
	if len(a) == 0 || a[0] == 0 {
		return nil, nil, errors.New("lfilter: a[0] must be non-zero")
	}
	if len(b) == 0 {
		return nil, nil, errors.New("lfilter: empty numerator")
	}

	n := max(len(a), len(b))
	bn := make([]float64, n)
	an := make([]float64, n)
	copy(bn, b)
	copy(an, a)
	if a0 := an[0]; a0 != 1 {
		for i := range n {
			bn[i] /= a0
			an[i] /= a0
		}
	}

	z := make([]float64, n-1)
	if zi != nil {
		if len(zi) != n-1 {
			return nil, nil, errors.New("lfilter: initial state has wrong length")
		}
		copy(z, zi)
	}

	y = make([]float64, len(x))
	for i, xi := range x {
		yi := bn[0] * xi
		if len(z) > 0 {
			yi += z[0]
			for k := 0; k < len(z)-1; k++ {
				z[k] = bn[k+1]*xi + z[k+1] - an[k+1]*yi
			}
			z[len(z)-1] = bn[n-1]*xi - an[n-1]*yi
		}
		y[i] = yi
	}
	return y, z, nil
}

// Apply designs a Butterworth filter and runs data through it from a zero
// state. Nothing is remembered between calls.
func Apply(data []float64, cutoff, sampleRate float64, kind Kind, order int) ([]float64, error) {
	c, err := Design(order, cutoff, sampleRate, kind)
	if err != nil {
		return nil, err
	}
	y, _, err := LFilter(c.B, c.A, data, nil)
	return y, err
}

// Stream is a Butterworth filter that keeps its delay line between blocks, so
// consecutive calls to Process behave like one call over the concatenated input.
// Changing any design parameter resets the state.
type Stream struct {
	mu sync.Mutex

	order      int
	cutoff     float64
	sampleRate float64
	kind       Kind

	coeffs Coefficients
	state  []float64
	ready  bool
}

// NewStream creates an empty streaming filter of the given order.
func NewStream(order int) *Stream {
	if order <= 0 {
		order = DefaultOrder
	}
	return &Stream{order: order}
}

// Process filters one block with the given parameters.
func (s *Stream) Process(data []float64, cutoff, sampleRate float64, kind Kind) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || cutoff != s.cutoff || sampleRate != s.sampleRate || kind != s.kind {
		c, err := Design(s.order, cutoff, sampleRate, kind)
		if err != nil {
			return nil, err
		}
		s.coeffs = c
		s.cutoff, s.sampleRate, s.kind = cutoff, sampleRate, kind
		s.state = nil
		s.ready = true
	}

	y, zf, err := LFilter(s.coeffs.B, s.coeffs.A, data, s.state)
	if err != nil {
		return nil, err
	}
	s.state = zf
	return y, nil
}

// Reset clears the delay line.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
}
