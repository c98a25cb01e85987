package config

import (
	"fmt"
	"os"
	"time"

	validator "gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Filter FilterConfig `yaml:"filter"`
	HTTP   HTTPConfig   `yaml:"http"`
	Output OutputConfig `yaml:"output"`
	Mock   MockConfig   `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port          string        `yaml:"port"`                         // Port opened at startup, empty to wait for the dashboard
	BaudRate      int           `yaml:"baud_rate" validate:"min=1"`   // Line speed
	BufferSize    int           `yaml:"buffer_size" validate:"min=0"` // Samples channel capacity
	ReadTimeout   time.Duration `yaml:"read_timeout"`                 // Per-read timeout
	SkipMalformed bool          `yaml:"skip_malformed"`               // Skip lines that are not integers instead of stopping
}

// FilterConfig contains the signal processing parameters and the initial
// values of the runtime filter settings.
type FilterConfig struct {
	SampleRate     float64       `yaml:"sample_rate" validate:"nonzero,min=0"` // Hz
	Order          int           `yaml:"order" validate:"min=1"`
	Stateful       bool          `yaml:"stateful"` // Keep filter memory across emitted blocks
	LowPassCutoff  float64       `yaml:"lp_cutoff" validate:"nonzero,min=0"`
	HighPassCutoff float64       `yaml:"hp_cutoff" validate:"nonzero,min=0"`
	LowPassActive  bool          `yaml:"lp_active"`
	HighPassActive bool          `yaml:"hp_active"`
	UpdateInterval time.Duration `yaml:"update_interval" validate:"min=1"`
	PollInterval   time.Duration `yaml:"poll_interval" validate:"min=1"`
}

// HTTPConfig contains the dashboard server configuration.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"nonzero"`
	ClientBuffer    int           `yaml:"client_buffer" validate:"min=0"` // Queued events per WebSocket client
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OutputConfig contains persistence configuration.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Enabled    bool          `yaml:"enabled"`                      // Offer the "mock" port
	Frequency  float64       `yaml:"frequency"`                    // Sine frequency (Hz)
	Amplitude  float64       `yaml:"amplitude"`                    // Sine amplitude (ADC counts)
	Offset     float64       `yaml:"offset"`                       // DC offset (ADC counts)
	NoiseLevel float64       `yaml:"noise_level"`                  // Noise amplitude (ADC counts)
	SampleRate time.Duration `yaml:"sample_rate" validate:"min=1"` // Sample period
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "",
			BaudRate:    115200,
			BufferSize:  1024,
			ReadTimeout: time.Second,
		},
		Filter: FilterConfig{
			SampleRate:     10.0,
			Order:          2,
			LowPassCutoff:  1.0,
			HighPassCutoff: 0.1,
			UpdateInterval: 50 * time.Millisecond,
			PollInterval:   10 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Addr:            "0.0.0.0:5000",
			ClientBuffer:    64,
			ShutdownTimeout: 5 * time.Second,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Mock: MockConfig{
			Enabled:    false,
			Frequency:  0.5,
			Amplitude:  400,
			Offset:     2048,
			NoiseLevel: 40,
			SampleRate: 100 * time.Millisecond, // 10 samples per second
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges. Load calls it after applying defaults.
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.BufferSize == 0 {
		c.Serial.BufferSize = def.Serial.BufferSize
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Filter.SampleRate == 0 {
		c.Filter.SampleRate = def.Filter.SampleRate
	}
	if c.Filter.Order == 0 {
		c.Filter.Order = def.Filter.Order
	}
	if c.Filter.LowPassCutoff == 0 {
		c.Filter.LowPassCutoff = def.Filter.LowPassCutoff
	}
	if c.Filter.HighPassCutoff == 0 {
		c.Filter.HighPassCutoff = def.Filter.HighPassCutoff
	}
	if c.Filter.UpdateInterval == 0 {
		c.Filter.UpdateInterval = def.Filter.UpdateInterval
	}
	if c.Filter.PollInterval == 0 {
		c.Filter.PollInterval = def.Filter.PollInterval
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.ClientBuffer == 0 {
		c.HTTP.ClientBuffer = def.HTTP.ClientBuffer
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = def.HTTP.ShutdownTimeout
	}

	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.Frequency == 0 {
		c.Mock.Frequency = def.Mock.Frequency
	}
}
