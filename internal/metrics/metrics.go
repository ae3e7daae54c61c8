// Package metrics tracks per-request performance and operational
// statistics for the server: request/response counters, byte counts, and
// a latency histogram with percentile estimation.
//
// Grounded on the teacher's root-package metrics.go (atomic counters,
// cumulative latency histogram, percentile interpolation, Observer
// plug-in interface), adapted from per-I/O-operation (read/write/discard/
// flush) counters to per-HTTP-request counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks request counts, byte counts, errors, and latency for a
// running server.
type Metrics struct {
	Requests  atomic.Uint64
	Responses atomic.Uint64
	Errors    atomic.Uint64

	BytesIn  atomic.Uint64
	BytesOut atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// New creates a fresh Metrics instance with StartTime set.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRequest records one accepted request's size.
func (m *Metrics) RecordRequest(bytesIn uint64) {
	m.Requests.Add(1)
	m.BytesIn.Add(bytesIn)
}

// RecordResponse records one completed response and the latency from
// request-ready to response-fully-written.
func (m *Metrics) RecordResponse(bytesOut uint64, latencyNs uint64, success bool) {
	m.Responses.Add(1)
	m.BytesOut.Add(bytesOut)
	if !success {
		m.Errors.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the collection period as ended.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time view of Metrics with derived statistics.
type Snapshot struct {
	Requests  uint64
	Responses uint64
	Errors    uint64

	BytesIn  uint64
	BytesOut uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	RequestsPerSec float64
	ErrorRate      float64
}

// Snapshot computes a point-in-time Snapshot.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:  m.Requests.Load(),
		Responses: m.Responses.Load(),
		Errors:    m.Errors.Load(),
		BytesIn:   m.BytesIn.Load(),
		BytesOut:  m.BytesOut.Load(),
	}

	opCount := m.OpCount.Load()
	totalLatencyNs := m.TotalLatencyNs.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.RequestsPerSec = float64(snap.Requests) / uptimeSeconds
	}
	if snap.Responses > 0 {
		snap.ErrorRate = float64(snap.Errors) / float64(snap.Responses) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.percentile(0.50)
		snap.LatencyP99Ns = m.percentile(0.99)
		snap.LatencyP999Ns = m.percentile(0.999)
	}

	return snap
}

// percentile estimates the latency at p (0.0-1.0) by linear interpolation
// between histogram buckets.
func (m *Metrics) percentile(p float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * p)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable metrics collection for the server.
type Observer interface {
	ObserveRequest(bytesIn uint64)
	ObserveResponse(bytesOut uint64, latencyNs uint64, success bool)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRequest(uint64)            {}
func (NoOpObserver) ObserveResponse(uint64, uint64, bool) {}

// MetricsObserver records observations into an underlying Metrics.
type MetricsObserver struct {
	m *Metrics
}

// NewObserver returns an Observer recording into m.
func NewObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{m: m}
}

func (o *MetricsObserver) ObserveRequest(bytesIn uint64) {
	o.m.RecordRequest(bytesIn)
}

func (o *MetricsObserver) ObserveResponse(bytesOut uint64, latencyNs uint64, success bool) {
	o.m.RecordResponse(bytesOut, latencyNs, success)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
