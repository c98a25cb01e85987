// Package metrics holds the Prometheus collectors shared by the acquisition
// loop, the broadcast hub and the output store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adcscope"

// Metrics groups every collector exported by the process.
type Metrics struct {
	SamplesRead     prometheus.Counter
	FramesEmitted   prometheus.Counter
	FrameSize       prometheus.Histogram
	FilterErrors    prometheus.Counter
	LoopsStarted    prometheus.Counter
	LoopFailures    prometheus.Counter
	Acquiring       prometheus.Gauge
	Clients         prometheus.Gauge
	EventsSent      prometheus.Counter
	EventsDropped   prometheus.Counter
	ValuesPersisted prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "samples_read_total",
			Help:      "Samples received from the serial device.",
		}),
		FramesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "frames_emitted_total",
			Help:      "Raw/filtered blocks pushed to clients.",
		}),
		FrameSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "frame_samples",
			Help:      "Samples per emitted block.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		FilterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "filter_errors_total",
			Help:      "Blocks emitted unfiltered because the filter could not be designed.",
		}),
		LoopsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "loops_started_total",
			Help:      "Acquisition loops started by port selection.",
		}),
		LoopFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "loop_failures_total",
			Help:      "Acquisition loops that ended on a connect, read or parse error.",
		}),
		Acquiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "running",
			Help:      "1 while an acquisition loop is running.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "clients",
			Help:      "Connected dashboard clients.",
		}),
		EventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_sent_total",
			Help:      "Events queued to clients.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a client queue was full.",
		}),
		ValuesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "values_written_total",
			Help:      "Values appended to the output file.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SamplesRead,
			m.FramesEmitted,
			m.FrameSize,
			m.FilterErrors,
			m.LoopsStarted,
			m.LoopFailures,
			m.Acquiring,
			m.Clients,
			m.EventsSent,
			m.EventsDropped,
			m.ValuesPersisted,
		)
	}

	return m
}
