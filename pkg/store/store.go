// Package store appends client-submitted values to the per-run output file.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/metrics"
)

const (
	// DefaultDir is used when no output directory is configured.
	DefaultDir = "output"

	filePrefix = "data_"
	fileLayout = "20060102-150405"
)

var (
	// ErrEmpty is returned by Append when there is nothing to write.
	ErrEmpty = errors.New("no data received")
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("store is closed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is an append-only text file with one value per line.
type Store struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// FileName returns the output file name for a run started at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(fileLayout) + ".txt"
}

// Open creates dir if missing and opens the run file named after now.
// An existing file with the same name is appended to.
func Open(dir string, now time.Time, m *metrics.Metrics, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	logger.Info("output file opened", zap.String("path", path))
	return &Store{
		path:    path,
		file:    f,
		metrics: m,
		logger:  logger,
	}, nil
}

// Path returns the output file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes every value on its own line. Numbers are written as they
// were received, strings without quotes and anything else as compact JSON.
// Values from one call are never interleaved with another call's.
func (s *Store) Append(values []interface{}) error {
	if len(values) == 0 {
		return ErrEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrClosed
	}

	w := bufio.NewWriter(s.file)
	for _, v := range values {
		line, err := formatValue(v)
		if err != nil {
			return fmt.Errorf("format value: %w", err)
		}
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}

	s.metrics.ValuesPersisted.Add(float64(len(values)))
	s.logger.Debug("values saved", zap.Int("count", len(values)))
	return nil
}

// Close closes the file. Further Appends fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func formatValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		// json.Number keeps the number exactly as it was sent
		return v.String(), nil
	case nil:
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
