package acquire

import (
	"sync"

	"github.com/itohio/adcscope/pkg/adc"
)

// fakeDevice is a Device whose samples are pushed by the test.
type fakeDevice struct {
	mu         sync.Mutex
	samples    chan adc.RawSample
	connectErr error
	err        error
	connected  bool
	closed     bool
}

func newFakeDevice(buf int) *fakeDevice {
	return &fakeDevice{samples: make(chan adc.RawSample, buf)}
}

func (f *fakeDevice) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed = true
	return nil
}

func (f *fakeDevice) Samples() <-chan adc.RawSample { return f.samples }

func (f *fakeDevice) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeDevice) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeDevice) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fail ends the sample stream the way a reader does on a read error.
func (f *fakeDevice) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	close(f.samples)
}

func (f *fakeDevice) push(values ...int64) {
	for _, v := range values {
		f.samples <- adc.RawSample{Value: v}
	}
}

// frameSink collects emitted frames.
type frameSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *frameSink) Emit(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *frameSink) snapshot() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *frameSink) rawCount() int {
	n := 0
	for _, f := range s.snapshot() {
		n += len(f.Raw)
	}
	return n
}
