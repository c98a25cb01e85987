package adc

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyConnected is returned by Connect on an open device.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrClosed is returned by Connect on a device that was already closed.
	// Devices are single use.
	ErrClosed = errors.New("device closed")
)

// RawSample is one integer read from the device together with the time it arrived.
type RawSample struct {
	Timestamp time.Time
	Value     int64
}

// Device defines the interface for ADC sources (real or mocked).
//
// Samples is closed when the device stops producing values, either because
// Close was called or because reading failed. Err reports the failure in the
// latter case.
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan RawSample
	IsConnected() bool
	Err() error
}

var _ Device = (*Serial)(nil)

var _ Device = (*Mock)(nil)
