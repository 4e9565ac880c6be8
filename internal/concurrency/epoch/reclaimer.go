// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultReclaimInterval is the cadence of the background executor's
// grace-period checks.
const DefaultReclaimInterval = 100 * time.Millisecond

// retirement is a node awaiting reclamation, stamped with the epoch that
// must be waited out before the free callback may run.
type retirement[T any] struct {
	v     *T
	epoch uint64
}

// Reclaimer retires nodes of type T against a Manager's grace periods. It
// supports two modes: RetireWait blocks the caller until the grace period
// elapses and frees synchronously; RetireDefer returns immediately and hands
// the free to a background executor that runs it exactly once after the
// grace period. The free callback is supplied at construction so the
// reclaimer stays independent of what T actually is.
type Reclaimer[T any] struct {
	epochs   *Manager
	free     func(*T)
	interval time.Duration

	mu      sync.Mutex
	pending []retirement[T]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

// NewReclaimer creates a reclaimer over the given epoch manager. free runs
// exactly once per retired node, on the retiring goroutine for RetireWait
// and on the executor goroutine for RetireDefer.
func NewReclaimer[T any](epochs *Manager, free func(*T)) *Reclaimer[T] {
	return NewReclaimerWithInterval(epochs, free, DefaultReclaimInterval)
}

// NewReclaimerWithInterval creates a reclaimer with a custom executor
// cadence. Shorter intervals reclaim deferred nodes sooner at the cost of
// more grace-period scans.
func NewReclaimerWithInterval[T any](epochs *Manager, free func(*T), interval time.Duration) *Reclaimer[T] {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reclaimer[T]{
		epochs:   epochs,
		free:     free,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background executor for deferred retirements. Calling
// Start more than once is a no-op, as is starting a stopped reclaimer.
func (rc *Reclaimer[T]) Start() {
	if rc.ctx.Err() != nil || !rc.started.CompareAndSwap(false, true) {
		return
	}
	rc.wg.Add(1)
	go rc.run()
}

// Stop halts the background executor without reclaiming what is still
// pending. Use Drain for a clean shutdown.
func (rc *Reclaimer[T]) Stop() {
	rc.cancel()
	rc.wg.Wait()
}

// RetireWait blocks until the grace period covering the node's retirement
// has elapsed for every reader active at the call, then frees the node
// synchronously on the calling goroutine.
func (rc *Reclaimer[T]) RetireWait(v *T) {
	if v == nil {
		return
	}
	rc.epochs.Synchronize()
	rc.free(v)
}

// RetireDefer records the retirement and returns immediately. The free
// callback runs exactly once, on the executor goroutine, at some point after
// the node's grace period elapses.
func (rc *Reclaimer[T]) RetireDefer(v *T) {
	if v == nil {
		return
	}
	e := rc.epochs.Advance()
	rc.mu.Lock()
	rc.pending = append(rc.pending, retirement[T]{v: v, epoch: e})
	rc.mu.Unlock()
}

// Pending returns the number of deferred retirements not yet freed.
func (rc *Reclaimer[T]) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.pending)
}

// run is the executor loop. It checks pending retirements against the
// current quiescence state on every tick.
func (rc *Reclaimer[T]) run() {
	defer rc.wg.Done()

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.Collect()
		case <-rc.ctx.Done():
			return
		}
	}
}

// Collect frees every pending retirement whose grace period has elapsed and
// returns how many were freed. Safe to call concurrently with retirements;
// a node is removed from the pending set before its callback runs, so the
// callback cannot run twice.
func (rc *Reclaimer[T]) Collect() int {
	rc.mu.Lock()
	var ready []retirement[T]
	keep := rc.pending[:0]
	for _, r := range rc.pending {
		if rc.epochs.quiescentAt(r.epoch) {
			ready = append(ready, r)
		} else {
			keep = append(keep, r)
		}
	}
	rc.pending = keep
	rc.mu.Unlock()

	for _, r := range ready {
		rc.free(r.v)
	}
	return len(ready)
}

// Drain stops the executor and reclaims everything still pending. A single
// Synchronize covers all outstanding stamps, after which every pending free
// is safe to run. Used at teardown; the reclaimer must not be reused after.
func (rc *Reclaimer[T]) Drain() {
	rc.Stop()

	rc.mu.Lock()
	remaining := rc.pending
	rc.pending = nil
	rc.mu.Unlock()

	if len(remaining) == 0 {
		return
	}
	rc.epochs.Synchronize()
	for _, r := range remaining {
		rc.free(r.v)
	}
}
