// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package epoch provides epoch-based safe memory reclamation for RCU-style
// data structures.
//
// This package implements a grace-period tracker. Readers bracket their
// traversals with critical sections; writers retire superseded nodes and the
// manager determines when every reader that might still observe a retired
// node has finished with it. Only then is the node's memory handed back.
//
// # Key Features
//
//   - Wait-free, allocation-free reader critical sections
//   - Re-entrant critical sections via a per-reader nesting counter
//   - Blocking grace-period waits (Synchronize)
//   - Deferred reclamation through a background executor (Reclaimer)
//   - Cache-line padded per-reader slots to avoid false sharing
//   - Slot recycling: a closed handle, or one collected without Close,
//     returns its slot for the next registration
//
// # Usage Examples
//
// Tracking readers and waiting out a grace period:
//
//	m := epoch.NewManager()
//
//	// Reader side: register once, then bracket every traversal.
//	r := m.Reader()
//	r.Enter()
//	// ... dereference shared pointers ...
//	r.Exit()
//
//	// Writer side: after unlinking a node from the live structure,
//	// wait until no reader can still hold a reference to it.
//	m.Synchronize()
//	// ... free the node ...
//
// # Dangers and Warnings
//
//   - **Pairing**: every Enter must be paired with an Exit. An unpaired Enter
//     stalls Synchronize forever; an unpaired Exit is ignored.
//   - **Reader ownership**: a Reader belongs to one goroutine at a time.
//     Enter/Exit on the same Reader from two goroutines is a data race on the
//     nesting counter.
//   - **Holding references**: pointers obtained inside a critical section are
//     valid only until the matching Exit. Copy values out, not pointers.
//   - **Synchronize inside a critical section**: calling Synchronize while the
//     calling goroutine's own Reader is entered deadlocks by construction.
//
// # Grace-Period Algorithm
//
// The manager keeps a global epoch counter and one slot per registered
// reader. Enter stamps the slot with the current epoch (zero means
// quiescent); Exit clears it when the outermost section ends. Synchronize
// advances the global epoch to E and waits until no slot holds a stamp below
// E: every reader that was inside a critical section when the epoch advanced
// has exited at least once, so no reader can still reference anything retired
// before the advance. Readers that enter afterwards stamp E or later and are
// irrelevant: their critical section began after the retired node was
// unlinked, so they can no longer reach it.
//
// # Thread Safety
//
// Reader registration takes a lock; Enter and Exit touch only the owning
// reader's slot with atomic operations and never block, allocate, or spin.
//
// # See Also
//
// For deferred reclamation, see the Reclaimer in this package.
package epoch

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// Manager tracks reader critical sections and decides when a grace period
// has elapsed. Slots live on the manager; Reader handles borrow them.
type Manager struct {
	global atomic.Uint64
	mu     sync.RWMutex
	slots  []*slot
	free   []*slot // quiescent slots awaiting the next Reader()
}

// slot is one reader's epoch cell. A zero value means the reader is
// quiescent. Slots are padded so readers on different cores do not share
// cache lines.
type slot struct {
	_     cpu.CacheLinePad
	epoch atomic.Uint64 // epoch observed at outermost Enter; 0 = quiescent
	_     cpu.CacheLinePad
}

// Reader is a per-goroutine critical-section handle over a registered slot.
type Reader struct {
	s       *slot
	depth   int // nesting count, touched only by the owning goroutine
	mgr     *Manager
	cleanup runtime.Cleanup
}

// NewManager creates a new epoch manager. The global epoch starts at 1 so a
// zero slot always means "not reading".
func NewManager() *Manager {
	m := &Manager{}
	m.global.Store(1)
	return m
}

// Reader registers a reader slot with the manager and returns a handle over
// it. Registration may allocate and takes a lock; do it once per goroutine
// (or pool the handles), not per traversal. Slots are recycled: handles that
// are closed, or dropped and collected without Close, hand their slot to the
// next registration, so the slot count is bounded by the peak number of live
// handles rather than growing with churn.
func (m *Manager) Reader() *Reader {
	m.mu.Lock()
	var s *slot
	if n := len(m.free); n > 0 {
		s = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		s = &slot{}
		m.slots = append(m.slots, s)
	}
	m.mu.Unlock()

	r := &Reader{s: s, mgr: m}
	r.cleanup = runtime.AddCleanup(r, m.recycle, s)
	return r
}

// recycle returns a quiescent slot to the free list. Runs from Close or,
// for a handle dropped without Close, from its cleanup after collection.
func (m *Manager) recycle(s *slot) {
	m.mu.Lock()
	m.free = append(m.free, s)
	m.mu.Unlock()
}

// Enter begins a reader critical section. Only the outermost Enter stamps
// the slot. Never blocks, never allocates.
func (r *Reader) Enter() {
	if r.depth == 0 {
		r.s.epoch.Store(r.mgr.global.Load())
	}
	r.depth++
}

// Exit ends a reader critical section. The slot is cleared when the
// outermost section ends. An Exit without a matching Enter is ignored.
func (r *Reader) Exit() {
	if r.depth == 0 {
		return
	}
	r.depth--
	if r.depth == 0 {
		r.s.epoch.Store(0)
	}
}

// Active reports whether the reader is currently inside a critical section.
func (r *Reader) Active() bool {
	return r.s.epoch.Load() != 0
}

// Close returns the reader's slot to the manager for reuse. The reader must
// be quiescent and must not be used afterwards. Close of a closed reader is
// a no-op.
func (r *Reader) Close() {
	if r.s == nil {
		return
	}
	r.cleanup.Stop()
	s := r.s
	r.s = nil
	r.mgr.recycle(s)
}

// Epoch returns the current global epoch.
func (m *Manager) Epoch() uint64 {
	return m.global.Load()
}

// Advance increments the global epoch and returns the new value. A
// retirement stamped with the returned epoch is safe to free once
// quiescentAt holds for that stamp.
func (m *Manager) Advance() uint64 {
	return m.global.Add(1)
}

// quiescentAt reports whether every reader that entered its critical section
// before the global epoch reached target has since exited at least once.
func (m *Manager) quiescentAt(target uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.slots {
		if e := s.epoch.Load(); e != 0 && e < target {
			return false
		}
	}
	return true
}

// Synchronize advances the global epoch and blocks until the grace period
// for every earlier epoch has elapsed: any reader that was inside a critical
// section when Synchronize was called is guaranteed to have exited before it
// returns. There is no timeout; the wait is proportional to how long
// concurrent readers take to quiesce.
func (m *Manager) Synchronize() {
	target := m.global.Add(1)
	for spins := 0; !m.quiescentAt(target); spins++ {
		if spins < 128 {
			runtime.Gosched()
		} else {
			time.Sleep(10 * time.Microsecond)
		}
	}
}

// ActiveReaders returns the number of readers currently inside a critical
// section. Diagnostic only; the value is stale the moment it is returned.
func (m *Manager) ActiveReaders() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.slots {
		if s.epoch.Load() != 0 {
			n++
		}
	}
	return n
}

// RegisteredReaders returns the number of slots currently held by a live
// reader handle.
func (m *Manager) RegisteredReaders() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots) - len(m.free)
}
