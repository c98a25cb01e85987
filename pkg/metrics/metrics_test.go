package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SamplesRead.Add(3)
	m.Clients.Set(2)
	m.FrameSize.Observe(5)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 11)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SamplesRead))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Clients))
}

func TestNew_Unregistered(t *testing.T) {
	m := New(nil)
	m.FramesEmitted.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesEmitted))

	// A second set on a fresh registry must not collide.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
