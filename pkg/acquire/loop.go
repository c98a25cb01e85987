package acquire

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/adc"
	"github.com/itohio/adcscope/pkg/metrics"
)

// DefaultPollInterval is how often the loop checks whether a block is due.
const DefaultPollInterval = 10 * time.Millisecond

// Frame is one emitted block. Raw and Filtered always have the same length,
// equal to the number of samples received since the previous frame.
type Frame struct {
	Raw      []float64 `json:"raw"`
	Filtered []float64 `json:"filtered"`
}

// Emitter receives every frame the loop produces.
type Emitter interface {
	Emit(Frame)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Frame)

// Emit calls f(frame).
func (f EmitterFunc) Emit(frame Frame) { f(frame) }

// LoopOptions tune a Loop. Zero values select defaults.
type LoopOptions struct {
	PollInterval time.Duration
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Loop reads samples from one device, buffers them and periodically emits
// the buffered block together with its filtered version.
type Loop struct {
	device    adc.Device
	settings  *SettingsStore
	processor *Processor
	emitter   Emitter
	poll      time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger

	buffer []int64
}

// NewLoop creates a loop for device. It does not connect until Run.
func NewLoop(device adc.Device, settings *SettingsStore, processor *Processor, emitter Emitter, opts LoopOptions) *Loop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loop{
		device:    device,
		settings:  settings,
		processor: processor,
		emitter:   emitter,
		poll:      opts.PollInterval,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Run connects the device and processes samples until ctx is cancelled or
// the device stops. A device that stops on its own is terminal: the error
// that ended it is returned and samples still in the buffer are discarded.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.device.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer l.device.Close()

	l.logger.Info("acquisition started")

	samples := l.device.Samples()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	lastSend := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil

		case s, ok := <-samples:
			if !ok {
				if err := l.device.Err(); err != nil {
					return fmt.Errorf("read: %w", err)
				}
				return nil
			}
			l.buffer = append(l.buffer, s.Value)
			l.metrics.SamplesRead.Inc()

		case now := <-ticker.C:
			if now.Sub(lastSend) >= l.settings.Snapshot().UpdateInterval {
				l.flush()
				lastSend = now
			}
		}
	}
}

// flush emits the buffered block and clears the buffer. An empty buffer
// emits nothing.
func (l *Loop) flush() {
	if len(l.buffer) == 0 {
		return
	}

	raw := make([]float64, len(l.buffer))
	for i, v := range l.buffer {
		raw[i] = float64(v)
	}
	l.buffer = l.buffer[:0]

	s := l.settings.Snapshot()
	filtered, err := l.processor.Process(raw, s)
	if err != nil {
		l.logger.Warn("filter failed, emitting raw block", zap.Error(err))
		l.metrics.FilterErrors.Inc()
		filtered = make([]float64, len(raw))
		copy(filtered, raw)
	}

	l.emitter.Emit(Frame{Raw: raw, Filtered: filtered})
	l.metrics.FramesEmitted.Inc()
	l.metrics.FrameSize.Observe(float64(len(raw)))
}
