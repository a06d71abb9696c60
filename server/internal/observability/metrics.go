// Package observability holds in-process counters for the ask and train
// paths. It is intentionally not a metrics exporter; the numbers are served
// on the instance introspection endpoint.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates counters for pool operations.
type Metrics struct {
	asksTotal   atomic.Int64
	asksFailed  atomic.Int64
	trainsTotal atomic.Int64
	evictions   atomic.Int64

	mu           sync.Mutex
	askDurations []time.Duration
	maxDurations int
}

// NewMetrics creates a metrics collector keeping the last maxDurations ask
// durations for the average.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		askDurations: make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordAsk records one completed ask.
func (m *Metrics) RecordAsk(duration time.Duration, err error) {
	m.asksTotal.Add(1)
	if err != nil {
		m.asksFailed.Add(1)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.askDurations) >= m.maxDurations {
		m.askDurations = m.askDurations[1:]
	}
	m.askDurations = append(m.askDurations, duration)
}

// RecordTrain records one completed training job.
func (m *Metrics) RecordTrain() {
	m.trainsTotal.Add(1)
}

// RecordEvictions records evictions from one sweep.
func (m *Metrics) RecordEvictions(n int) {
	m.evictions.Add(int64(n))
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	AsksTotal    int64   `json:"asksTotal"`
	AsksFailed   int64   `json:"asksFailed"`
	TrainsTotal  int64   `json:"trainsTotal"`
	Evictions    int64   `json:"evictions"`
	AvgAskMillis float64 `json:"avgAskMillis"`
	SampledAsks  int     `json:"sampledAsks"`
}

// GetSnapshot returns the current counter values.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.Lock()
	var total time.Duration
	for _, d := range m.askDurations {
		total += d
	}
	sampled := len(m.askDurations)
	m.mu.Unlock()

	var avg float64
	if sampled > 0 {
		avg = float64(total.Milliseconds()) / float64(sampled)
	}
	return Snapshot{
		AsksTotal:    m.asksTotal.Load(),
		AsksFailed:   m.asksFailed.Load(),
		TrainsTotal:  m.trainsTotal.Load(),
		Evictions:    m.evictions.Load(),
		AvgAskMillis: avg,
		SampledAsks:  sampled,
	}
}
