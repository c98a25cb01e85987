package acquire

import (
	"sync"
	"time"

	"github.com/itohio/adcscope/pkg/config"
)

// Default runtime settings, used when a field is missing from an update.
const (
	DefaultLowPassCutoff  = 1.0
	DefaultHighPassCutoff = 0.1
	DefaultUpdateInterval = 50 * time.Millisecond
)

// Settings are the filter parameters the loop reads on every flush.
type Settings struct {
	LowPassCutoff  float64       // Hz
	HighPassCutoff float64       // Hz
	LowPassActive  bool
	HighPassActive bool
	UpdateInterval time.Duration // Minimum time between emitted blocks
}

// DefaultSettings returns both filters disabled with the default cutoffs.
func DefaultSettings() Settings {
	return Settings{
		LowPassCutoff:  DefaultLowPassCutoff,
		HighPassCutoff: DefaultHighPassCutoff,
		UpdateInterval: DefaultUpdateInterval,
	}
}

// SettingsFromConfig seeds runtime settings from the configuration file.
func SettingsFromConfig(cfg config.FilterConfig) Settings {
	s := Settings{
		LowPassCutoff:  cfg.LowPassCutoff,
		HighPassCutoff: cfg.HighPassCutoff,
		LowPassActive:  cfg.LowPassActive,
		HighPassActive: cfg.HighPassActive,
		UpdateInterval: cfg.UpdateInterval,
	}
	def := DefaultSettings()
	if s.LowPassCutoff == 0 {
		s.LowPassCutoff = def.LowPassCutoff
	}
	if s.HighPassCutoff == 0 {
		s.HighPassCutoff = def.HighPassCutoff
	}
	if s.UpdateInterval <= 0 {
		s.UpdateInterval = def.UpdateInterval
	}
	return s
}

// SettingsStore shares Settings between the control surface and the loop.
// Updates replace the whole value, so a reader never sees a mix of old and
// new fields.
type SettingsStore struct {
	mu sync.RWMutex
	s  Settings
}

// NewSettingsStore creates a store holding s.
func NewSettingsStore(s Settings) *SettingsStore {
	return &SettingsStore{s: s}
}

// Snapshot returns a copy of the current settings.
func (st *SettingsStore) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Update replaces the current settings.
func (st *SettingsStore) Update(s Settings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = s
}
