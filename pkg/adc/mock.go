package adc

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/itohio/adcscope/pkg/config"
)

// MaxADC is the full scale of the 12-bit ADC being simulated.
const MaxADC = 4095

// Mock simulates an ADC streaming a noisy sine wave.
type Mock struct {
	cfg *config.MockConfig

	samples   chan RawSample
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	started   bool

	startTime time.Time
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Frequency:  0.5,
			Amplitude:  400,
			Offset:     2048,
			NoiseLevel: 40,
			SampleRate: 100 * time.Millisecond,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     cfg,
		samples: make(chan RawSample, DefaultBufferSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect starts generating samples.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	if m.started {
		return ErrClosed
	}

	m.connected = true
	m.started = true
	m.startTime = time.Now()

	go m.generateSamples()

	return nil
}

// Close stops the mocked device and waits for the generator to exit.
func (m *Mock) Close() error {
	m.mu.Lock()
	started := m.started
	m.connected = false
	m.mu.Unlock()

	m.cancel()
	if started {
		<-m.done
	}
	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Err always returns nil; the mock never fails.
func (m *Mock) Err() error {
	return nil
}

func (m *Mock) generateSamples() {
	defer close(m.done)
	defer close(m.samples)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			sample := RawSample{
				Timestamp: now,
				Value:     m.valueAt(now.Sub(m.startTime)),
			}
			select {
			case m.samples <- sample:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// valueAt returns the simulated ADC reading at the given time since start.
func (m *Mock) valueAt(elapsed time.Duration) int64 {
	t := elapsed.Seconds()
	v := m.cfg.Offset + m.cfg.Amplitude*math.Sin(2*math.Pi*m.cfg.Frequency*t)

	// Deterministic pseudo noise well above the signal frequency
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5
	v += noise

	return clampADC(v)
}

func clampADC(v float64) int64 {
	if v < 0 {
		return 0
	}
	if v > MaxADC {
		return MaxADC
	}
	return int64(math.Round(v))
}
