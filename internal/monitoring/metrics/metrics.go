// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics provides performance and reclamation observability for the
// RCU library catalog.
//
// It tracks operation counts, caller-visible error counts, reclamation
// activity (grace-period waits, deferred retirements, freed nodes), the
// active reader gauge, and recent operation and grace-period wait latencies
// in bounded ring buffers.
//
// # Usage Examples
//
//	m := metrics.New()
//
//	start := time.Now()
//	// ... perform operation ...
//	m.RecordGet(time.Since(start))
//
//	m.RecordError("update")
//	m.RecordSyncWait(time.Since(waitStart))
//
//	snap := m.Snapshot()
//	fmt.Printf("adds=%d freed=%d\n", snap.Operations.Add, snap.Reclamation.Freed)
//
// # Thread Safety
//
// All recording methods are safe for concurrent use. Counters are plain
// atomics; only the latency ring buffer takes a lock.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// latencyBufferSize bounds the number of duration samples kept per ring.
const latencyBufferSize = 1000

// WaitStats summarizes recent durations from one ring.
type WaitStats struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// OperationCounts tracks counts for all operation types.
type OperationCounts struct {
	Add    uint64 `json:"add"`
	Update uint64 `json:"update"`
	Delete uint64 `json:"delete"`
	Get    uint64 `json:"get"`
}

// ErrorCounts tracks caller-visible error counts per operation type.
type ErrorCounts struct {
	Add    uint64 `json:"add"`
	Update uint64 `json:"update"`
	Delete uint64 `json:"delete"`
	Get    uint64 `json:"get"`
}

// LatencyMetrics tracks recent latencies for all operation types.
type LatencyMetrics struct {
	Add    WaitStats `json:"add"`
	Update WaitStats `json:"update"`
	Delete WaitStats `json:"delete"`
	Get    WaitStats `json:"get"`
}

// ReclamationMetrics tracks safe-memory-reclamation activity.
type ReclamationMetrics struct {
	SyncWaits       uint64 `json:"sync_waits"`
	DeferredRetires uint64 `json:"deferred_retires"`
	Freed           uint64 `json:"freed"`
	ActiveReaders   uint64 `json:"active_readers"`
	LiveNodes       uint64 `json:"live_nodes"`
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Operations  OperationCounts    `json:"operations"`
	Errors      ErrorCounts        `json:"errors"`
	Reclamation ReclamationMetrics `json:"reclamation"`
	Latency     LatencyMetrics     `json:"latency"`
	WaitLatency WaitStats          `json:"wait_latency"`
}

// durationRing is a bounded ring buffer of recent durations.
type durationRing struct {
	mu     sync.Mutex
	buf    []time.Duration
	next   int
	filled bool
	total  uint64
}

func newDurationRing(capacity int) *durationRing {
	return &durationRing{buf: make([]time.Duration, capacity)}
}

func (r *durationRing) push(d time.Duration) {
	r.mu.Lock()
	r.buf[r.next] = d
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.filled = true
	}
	r.total++
	r.mu.Unlock()
}

func (r *durationRing) stats() WaitStats {
	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.buf)
	}
	values := make([]time.Duration, n)
	copy(values, r.buf[:n])
	total := r.total
	r.mu.Unlock()

	if n == 0 {
		return WaitStats{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	var sum time.Duration
	for _, v := range values {
		sum += v
	}
	pct := func(p float64) time.Duration {
		i := int(float64(n-1) * p)
		return values[i]
	}
	return WaitStats{
		Count: total,
		Min:   values[0],
		Max:   values[n-1],
		Mean:  sum / time.Duration(n),
		P50:   pct(0.50),
		P95:   pct(0.95),
		P99:   pct(0.99),
	}
}

// Metrics collects counters and wait latencies.
type Metrics struct {
	addCount    atomic.Uint64
	updateCount atomic.Uint64
	deleteCount atomic.Uint64
	getCount    atomic.Uint64

	addErrors    atomic.Uint64
	updateErrors atomic.Uint64
	deleteErrors atomic.Uint64
	getErrors    atomic.Uint64

	syncWaits       atomic.Uint64
	deferredRetires atomic.Uint64
	freed           atomic.Uint64
	activeReaders   atomic.Uint64
	liveNodes       atomic.Uint64

	addLatency    *durationRing
	updateLatency *durationRing
	deleteLatency *durationRing
	getLatency    *durationRing
	waitLatency   *durationRing
}

// New creates a new metrics instance.
func New() *Metrics {
	return &Metrics{
		addLatency:    newDurationRing(latencyBufferSize),
		updateLatency: newDurationRing(latencyBufferSize),
		deleteLatency: newDurationRing(latencyBufferSize),
		getLatency:    newDurationRing(latencyBufferSize),
		waitLatency:   newDurationRing(latencyBufferSize),
	}
}

// RecordAdd records a completed add operation and its duration.
func (m *Metrics) RecordAdd(d time.Duration) {
	m.addCount.Add(1)
	m.addLatency.push(d)
}

// RecordUpdate records a completed update operation and its duration.
func (m *Metrics) RecordUpdate(d time.Duration) {
	m.updateCount.Add(1)
	m.updateLatency.push(d)
}

// RecordDelete records a completed delete operation and its duration.
func (m *Metrics) RecordDelete(d time.Duration) {
	m.deleteCount.Add(1)
	m.deleteLatency.push(d)
}

// RecordGet records a completed lookup and its duration.
func (m *Metrics) RecordGet(d time.Duration) {
	m.getCount.Add(1)
	m.getLatency.push(d)
}

// RecordError records a caller-visible error for the named operation.
func (m *Metrics) RecordError(op string) {
	switch op {
	case "add":
		m.addErrors.Add(1)
	case "update":
		m.updateErrors.Add(1)
	case "delete":
		m.deleteErrors.Add(1)
	case "get":
		m.getErrors.Add(1)
	}
}

// RecordSyncWait records one blocking grace-period wait and its duration.
func (m *Metrics) RecordSyncWait(d time.Duration) {
	m.syncWaits.Add(1)
	m.waitLatency.push(d)
}

// RecordDeferredRetire records one deferred retirement being enqueued.
func (m *Metrics) RecordDeferredRetire() { m.deferredRetires.Add(1) }

// RecordFreed records nodes whose memory was actually reclaimed.
func (m *Metrics) RecordFreed(n uint64) { m.freed.Add(n) }

// SetActiveReaders updates the active reader gauge.
func (m *Metrics) SetActiveReaders(n uint64) { m.activeReaders.Store(n) }

// SetLiveNodes updates the live node gauge.
func (m *Metrics) SetLiveNodes(n uint64) { m.liveNodes.Store(n) }

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Operations: OperationCounts{
			Add:    m.addCount.Load(),
			Update: m.updateCount.Load(),
			Delete: m.deleteCount.Load(),
			Get:    m.getCount.Load(),
		},
		Errors: ErrorCounts{
			Add:    m.addErrors.Load(),
			Update: m.updateErrors.Load(),
			Delete: m.deleteErrors.Load(),
			Get:    m.getErrors.Load(),
		},
		Reclamation: ReclamationMetrics{
			SyncWaits:       m.syncWaits.Load(),
			DeferredRetires: m.deferredRetires.Load(),
			Freed:           m.freed.Load(),
			ActiveReaders:   m.activeReaders.Load(),
			LiveNodes:       m.liveNodes.Load(),
		},
		Latency: LatencyMetrics{
			Add:    m.addLatency.stats(),
			Update: m.updateLatency.stats(),
			Delete: m.deleteLatency.stats(),
			Get:    m.getLatency.stats(),
		},
		WaitLatency: m.waitLatency.stats(),
	}
}
