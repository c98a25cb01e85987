package acquire

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/adc"
	"github.com/itohio/adcscope/pkg/config"
	"github.com/itohio/adcscope/pkg/metrics"
)

var (
	// ErrEmptyPort is returned by Select when no port is given.
	ErrEmptyPort = errors.New("no port given")
	// ErrManagerClosed is returned by Select after Close.
	ErrManagerClosed = errors.New("acquisition manager closed")
)

// DeviceFactory creates an unconnected device for a port identifier.
type DeviceFactory func(port string) adc.Device

// Manager owns the acquisition loop. At most one loop runs at a time:
// selecting a port stops the previous loop and waits for it before the new
// one starts.
type Manager struct {
	factory  DeviceFactory
	settings *SettingsStore
	cfg      config.FilterConfig
	emitter  Emitter
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	port   string
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewManager creates an idle manager.
func NewManager(factory DeviceFactory, settings *SettingsStore, cfg config.FilterConfig, emitter Emitter, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory:  factory,
		settings: settings,
		cfg:      cfg,
		emitter:  emitter,
		metrics:  m,
		logger:   logger,
	}
}

// Select starts acquiring from port. It returns as soon as the loop has been
// started; whether the port could actually be opened is only logged.
func (m *Manager) Select(port string) error {
	if port == "" {
		return ErrEmptyPort
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.stopLocked()

	logger := m.logger.With(zap.String("port", port))
	loop := NewLoop(m.factory(port), m.settings, NewProcessor(m.cfg), m.emitter, LoopOptions{
		PollInterval: m.cfg.PollInterval,
		Metrics:      m.metrics,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.port = port
	m.cancel = cancel
	m.done = done

	m.metrics.LoopsStarted.Inc()
	m.metrics.Acquiring.Set(1)

	go func() {
		if err := loop.Run(ctx); err != nil {
			m.metrics.LoopFailures.Inc()
			logger.Error("acquisition stopped", zap.Error(err))
		} else {
			logger.Info("acquisition stopped")
		}
		// Stop waits on done while holding mu, so close it before locking.
		close(done)
		m.loopExited(done)
	}()

	return nil
}

// loopExited clears the running state if done still belongs to the current loop.
func (m *Manager) loopExited(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == done {
		m.metrics.Acquiring.Set(0)
	}
}

// Stop stops the running loop, if any, and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Close stops the running loop and rejects further selections.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.closed = true
	return nil
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
	m.port = ""
	m.metrics.Acquiring.Set(0)
}

// Port returns the port of the current loop, or "" when idle.
func (m *Manager) Port() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port
}

// Running reports whether a loop is currently active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
