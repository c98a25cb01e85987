package adc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/config"
)

const (
	// DefaultBaudRate matches the ESP32 firmware UART speed.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 1024
	// DefaultReadTimeout bounds a single read so cancellation is observed.
	DefaultReadTimeout = time.Second
)

// Serial reads newline-delimited ASCII integers from a serial port.
type Serial struct {
	port          string
	baudRate      int
	bufSize       int
	readTimeout   time.Duration
	skipMalformed bool
	logger        *zap.Logger

	conn      serial.Port
	samples   chan RawSample
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	started   bool
	err       error
}

// New creates a new Serial device for the given port. Zero values in cfg fall
// back to the package defaults; cfg.Port is ignored in favour of port.
func New(port string, cfg config.SerialConfig, logger *zap.Logger) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:          port,
		baudRate:      cfg.BaudRate,
		bufSize:       cfg.BufferSize,
		readTimeout:   cfg.ReadTimeout,
		skipMalformed: cfg.SkipMalformed,
		logger:        logger.With(zap.String("port", port)),
		samples:       make(chan RawSample, cfg.BufferSize),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Connect opens the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}
	if d.started {
		return ErrClosed
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true
	d.started = true

	go d.readSamples(port)

	return nil
}

// Close closes the connection and waits for the reader to stop.
// The samples channel is closed once the reader has exited.
func (d *Serial) Close() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	started := d.started
	d.connected = false
	d.mu.Unlock()

	d.cancel()

	var err error
	if conn != nil {
		if err = conn.Close(); err != nil {
			d.logger.Warn("error closing serial port", zap.Error(err))
		}
	}

	if started {
		<-d.done
	}
	return err
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Err returns the error that stopped the reader, if any.
func (d *Serial) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// readSamples reads lines from the serial port until the context is cancelled
// or a read/parse error occurs.
func (d *Serial) readSamples(port io.Reader) {
	defer close(d.done)
	defer close(d.samples)

	err := scanSamples(d.ctx, &timeoutReader{ctx: d.ctx, r: port}, d.samples, d.skipMalformed, d.logger)

	d.mu.Lock()
	d.connected = false
	if d.ctx.Err() == nil {
		d.err = err
	}
	d.mu.Unlock()

	switch {
	case d.ctx.Err() != nil:
		d.logger.Debug("serial reader stopped")
	case err != nil:
		d.logger.Error("serial reader terminated", zap.Error(err))
	default:
		d.logger.Info("serial port reached end of stream")
	}
}

// scanSamples parses one integer per line from r and sends it to out.
// Blank lines are ignored. A line that does not parse ends the scan with an
// error unless skipMalformed is set.
func scanSamples(ctx context.Context, r io.Reader, out chan<- RawSample, skipMalformed bool, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sample, err := parseLine(line)
		if err != nil {
			if skipMalformed {
				logger.Warn("skipping malformed line", zap.String("line", line), zap.Error(err))
				continue
			}
			return err
		}

		select {
		case out <- sample:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading from serial port: %w", err)
	}
	return nil
}

// parseLine parses a single line from the device.
// Format: one base-10 integer, e.g. "2048".
func parseLine(line string) (RawSample, error) {
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid sample %q: %w", line, err)
	}
	return RawSample{Timestamp: time.Now(), Value: v}, nil
}

// timeoutReader retries reads that returned nothing because the port read
// timeout elapsed, so bufio does not give up with io.ErrNoProgress. It gives
// up once the context is done.
type timeoutReader struct {
	ctx context.Context
	r   io.Reader
}

func (t *timeoutReader) Read(p []byte) (int, error) {
	for {
		n, err := t.r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if err := t.ctx.Err(); err != nil {
			return 0, err
		}
	}
}
