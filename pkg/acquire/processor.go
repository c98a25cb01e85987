package acquire

import (
	"github.com/itohio/adcscope/pkg/config"
	"github.com/itohio/adcscope/pkg/filter"
)

// Processor runs a block through the enabled filters: low-pass first, then
// high-pass, as the dashboard expects.
//
// In the default mode every block is filtered from a zero state. With
// stateful set, each filter keeps its delay line between blocks and the
// emitted signal is continuous across block boundaries.
type Processor struct {
	sampleRate float64
	order      int
	stateful   bool

	lp *filter.Stream
	hp *filter.Stream
}

// NewProcessor creates a processor from the filter configuration.
func NewProcessor(cfg config.FilterConfig) *Processor {
	order := cfg.Order
	if order <= 0 {
		order = filter.DefaultOrder
	}
	p := &Processor{
		sampleRate: cfg.SampleRate,
		order:      order,
		stateful:   cfg.Stateful,
	}
	if p.stateful {
		p.lp = filter.NewStream(order)
		p.hp = filter.NewStream(order)
	}
	return p
}

// SampleRate returns the sampling rate the filters are designed for.
func (p *Processor) SampleRate() float64 {
	return p.sampleRate
}

// Process returns the filtered block. raw is not modified; when no filter is
// active the result is a copy of raw.
func (p *Processor) Process(raw []float64, s Settings) ([]float64, error) {
	out := make([]float64, len(raw))
	copy(out, raw)

	var err error
	if s.LowPassActive {
		if out, err = p.run(p.lp, out, s.LowPassCutoff, filter.LowPass); err != nil {
			return nil, err
		}
	} else if p.lp != nil {
		p.lp.Reset()
	}

	if s.HighPassActive {
		if out, err = p.run(p.hp, out, s.HighPassCutoff, filter.HighPass); err != nil {
			return nil, err
		}
	} else if p.hp != nil {
		p.hp.Reset()
	}

	return out, nil
}

func (p *Processor) run(stream *filter.Stream, data []float64, cutoff float64, kind filter.Kind) ([]float64, error) {
	if stream != nil {
		return stream.Process(data, cutoff, p.sampleRate, kind)
	}
	return filter.Apply(data, cutoff, p.sampleRate, kind, p.order)
}
