// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package core implements the RCU library catalog: a concurrent collection
// of book records with wait-free readers, a single serialized writer path,
// and epoch-based safe memory reclamation.
//
// This package wires the generic building blocks together:
//   - an RCU singly linked chain of nodes (storage/list)
//   - a writer mutex serializing all structural mutations
//   - an epoch manager plus reclaimer deciding when superseded nodes may be
//     freed (concurrency/epoch)
//   - metrics and structured logging around every operation
//
// # Usage Examples
//
//	lib := core.New()
//	defer lib.Close(ctx)
//
//	if err := lib.Add(ctx, 0, "A journey of linux kernel", "Tom Hoter"); err != nil {
//	    // handle error
//	}
//
//	book, err := lib.Get(ctx, 0)                         // copy of the live record
//	err = lib.Update(ctx, 0, core.Available, core.Wait)  // blocking reclamation
//	err = lib.Delete(ctx, 0, core.Defer)                 // deferred reclamation
//
// # Concurrency Model
//
// Readers (Get, IsBorrowed, Ascend, Len) never block and never touch the
// writer mutex; they only bracket their traversal with an epoch critical
// section. Writers (Add, Update, Delete) serialize on a mutex held only
// across the short non-blocking section that locates and publishes the
// change. A reader that begins strictly after a publish observes the new
// state; one that began before may observe either state, never a torn
// record. Retirement only ever targets a node already unlinked from the live
// chain.
//
// # Error Handling
//
// All operations are total: a failed Add, Update, or Delete leaves the
// collection exactly as it was, and the failure is one of ErrNotFound,
// ErrAlreadyInState, or ErrNoSpace. Nothing in this package retries.
//
// # Dangers and Warnings
//
//   - **Reclamation mode**: Wait blocks the writer for a full grace period;
//     never call it from a context that cannot tolerate blocking. Defer
//     returns immediately and frees on a background goroutine.
//   - **Duplicate ids**: Add performs no uniqueness check; the caller owns
//     id discipline. With duplicates, Get returns the most recently added
//     record and Delete removes it first.
//   - **Teardown**: always call Close. It drains the chain, reclaims every
//     pending retirement, and stops the background executor.
package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kianostad/rculib/internal/concurrency/epoch"
	"github.com/kianostad/rculib/internal/monitoring/metrics"
	"github.com/kianostad/rculib/internal/storage/list"
)

// Status is the lending state of a book.
type Status uint8

const (
	// Available means the book is on the shelf.
	Available Status = iota
	// Borrowed means the book is currently lent out. New records start
	// Borrowed.
	Borrowed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Borrowed:
		return "borrowed"
	default:
		return "unknown"
	}
}

// ReclaimMode selects how a superseded node's memory is reclaimed. The mode
// is a visible part of each Update/Delete call's contract; it is never
// observable through query results, only through when memory is freed.
type ReclaimMode uint8

const (
	// Wait blocks the calling goroutine until the grace period elapses,
	// then frees synchronously. Deterministic reclamation.
	Wait ReclaimMode = iota
	// Defer returns immediately; the free runs exactly once on the
	// background executor after the grace period elapses.
	Defer
)

// Book is an immutable-once-published record. Any change produces a new
// Book inside a new node; fields are never mutated in place.
type Book struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Author string `json:"author"`
	Status Status `json:"status"`
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the structured logging sink. nil discards nothing here;
// pass a handler-level filter (or NoopLogger().Logger) to silence output.
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) {
		if l != nil {
			lib.logger = &Logger{Logger: l}
		}
	}
}

// WithCapacity bounds the number of allocated-but-not-yet-freed nodes. When
// the bound is reached, Add and Update fail with ErrNoSpace before touching
// the chain. Zero or negative means unlimited.
func WithCapacity(n int64) Option {
	return func(lib *Library) {
		lib.capacity = n
	}
}

// WithReclaimInterval sets the cadence of the deferred executor's
// grace-period checks.
func WithReclaimInterval(d time.Duration) Option {
	return func(lib *Library) {
		lib.reclaimInterval = d
	}
}

// Library is the catalog. A single explicitly constructed instance owns its
// chain, reclaimer, and metrics; there are no package-level statics.
type Library struct {
	books *list.List[Book]
	pool  *list.NodePool[Book]

	// mu is the writer serializer: at most one structural mutation is in
	// flight at a time. Readers never take it.
	mu sync.Mutex

	epochs    *epoch.Manager
	reclaimer *epoch.Reclaimer[list.Node[Book]]

	readerPool sync.Pool

	live     atomic.Int64 // allocated nodes not yet freed
	capacity int64        // 0 = unlimited

	reclaimInterval time.Duration

	metrics *metrics.Metrics
	logger  *Logger

	closed atomic.Bool
}

// New creates a Library with an empty chain, an unlocked writer serializer,
// and a running deferred-reclamation executor.
func New(opts ...Option) *Library {
	lib := &Library{
		books:   list.New[Book](),
		pool:    list.NewNodePool[Book](),
		epochs:  epoch.NewManager(),
		metrics: metrics.New(),
		logger:  &Logger{Logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(lib)
	}

	lib.readerPool.New = func() interface{} {
		return lib.epochs.Reader()
	}
	lib.reclaimer = epoch.NewReclaimerWithInterval(lib.epochs, lib.freeNode, lib.reclaimInterval)
	lib.reclaimer.Start()
	return lib
}

// freeNode is the reclaimer's free callback. It runs strictly after the
// node's grace period, either on the retiring goroutine (Wait) or on the
// executor goroutine (Defer).
func (l *Library) freeNode(n *list.Node[Book]) {
	l.live.Add(-1)
	l.metrics.RecordFreed(1)
	l.logger.LogReclaim(n.Value().ID)
	l.pool.Put(n)
}

// reserve claims one node slot against the configured capacity.
func (l *Library) reserve() error {
	if l.capacity <= 0 {
		l.live.Add(1)
		return nil
	}
	for {
		n := l.live.Load()
		if n >= l.capacity {
			return noSpaceError(l.capacity)
		}
		if l.live.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// unreserve gives back a slot claimed by reserve when the operation fails
// before publishing.
func (l *Library) unreserve() {
	l.live.Add(-1)
}

func (l *Library) reader() *epoch.Reader {
	return l.readerPool.Get().(*epoch.Reader)
}

func (l *Library) putReader(r *epoch.Reader) {
	l.readerPool.Put(r)
}

// retire hands an unlinked node to the reclaimer in the requested mode.
func (l *Library) retire(n *list.Node[Book], mode ReclaimMode) {
	if mode == Defer {
		l.reclaimer.RetireDefer(n)
		l.metrics.RecordDeferredRetire()
		return
	}
	start := time.Now()
	l.reclaimer.RetireWait(n)
	l.metrics.RecordSyncWait(time.Since(start))
}

// Add inserts a new book. New records start Borrowed, matching the historic
// behavior of the catalog this library grew out of. No uniqueness check is
// performed; id discipline belongs to the caller. Fails with ErrNoSpace when
// the capacity bound is reached, leaving the chain unchanged.
func (l *Library) Add(ctx context.Context, id int, name, author string) error {
	start := time.Now()
	defer func() {
		l.metrics.RecordAdd(time.Since(start))
	}()

	if err := l.reserve(); err != nil {
		l.metrics.RecordError("add")
		l.logger.LogAdd(ctx, id, name, author, err)
		return err
	}

	n := l.pool.Get(Book{ID: id, Name: name, Author: author, Status: Borrowed})

	l.mu.Lock()
	l.books.Insert(n)
	l.mu.Unlock()

	l.logger.LogAdd(ctx, id, name, author, nil)
	return nil
}

// Get returns a copy of the live record with the given id. The copy makes
// repeated calls idempotent: without an intervening writer, Get always
// yields identical field values. Fails with ErrNotFound when absent.
func (l *Library) Get(ctx context.Context, id int) (Book, error) {
	start := time.Now()
	defer func() {
		l.metrics.RecordGet(time.Since(start))
	}()

	r := l.reader()
	r.Enter()
	node := l.books.Find(func(b Book) bool { return b.ID == id })
	if node == nil {
		r.Exit()
		l.putReader(r)
		l.metrics.RecordError("get")
		return Book{}, notFoundError(id)
	}
	book := node.Value()
	r.Exit()
	l.putReader(r)
	return book, nil
}

// IsBorrowed reports whether the book with the given id is currently lent
// out. Fails with ErrNotFound when absent.
func (l *Library) IsBorrowed(ctx context.Context, id int) (bool, error) {
	book, err := l.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return book.Status == Borrowed, nil
}

// Update transitions the book with the given id to status. The lookup and
// staleness check run under a reader critical section so the node about to
// be replaced is known to still be the live one; there is no CAS loop
// because the writer mutex excludes any racing writer on the same id.
//
// Fails with ErrNotFound when absent, ErrAlreadyInState when the record
// already has the requested status, and ErrNoSpace when the replacement node
// cannot be obtained. All failures leave the chain unchanged. The superseded
// node is retired in the requested mode after its replacement is published.
func (l *Library) Update(ctx context.Context, id int, status Status, mode ReclaimMode) error {
	start := time.Now()
	defer func() {
		l.metrics.RecordUpdate(time.Since(start))
	}()

	r := l.reader()
	r.Enter()

	old := l.books.Find(func(b Book) bool { return b.ID == id })
	if old == nil {
		r.Exit()
		l.putReader(r)
		l.metrics.RecordError("update")
		err := notFoundError(id)
		l.logger.LogUpdate(ctx, id, status, mode, err)
		return err
	}

	current := old.Value()
	if current.Status == status {
		r.Exit()
		l.putReader(r)
		l.metrics.RecordError("update")
		err := alreadyInStateError{id: id, status: status}
		l.logger.LogUpdate(ctx, id, status, mode, err)
		return err
	}

	if err := l.reserve(); err != nil {
		r.Exit()
		l.putReader(r)
		l.metrics.RecordError("update")
		l.logger.LogUpdate(ctx, id, status, mode, err)
		return err
	}

	replacement := current
	replacement.Status = status
	node := l.pool.Get(replacement)

	l.mu.Lock()
	replaced := l.books.Replace(old, node)
	l.mu.Unlock()

	r.Exit()
	l.putReader(r)

	if !replaced {
		// A concurrent delete unlinked the node between lookup and
		// publish. Nothing was changed on our behalf.
		l.unreserve()
		l.pool.Put(node)
		l.metrics.RecordError("update")
		err := notFoundError(id)
		l.logger.LogUpdate(ctx, id, status, mode, err)
		return err
	}

	l.logger.LogUpdate(ctx, id, status, mode, nil)

	l.retire(old, mode)
	return nil
}

// Delete unlinks the book with the given id and retires its node in the
// requested mode. The scan and unlink both run under the writer mutex.
// Fails with ErrNotFound when absent.
func (l *Library) Delete(ctx context.Context, id int, mode ReclaimMode) error {
	start := time.Now()
	defer func() {
		l.metrics.RecordDelete(time.Since(start))
	}()

	l.mu.Lock()
	var victim *list.Node[Book]
	l.books.Ascend(func(n *list.Node[Book]) bool {
		if n.Value().ID == id {
			victim = n
			return false
		}
		return true
	})
	if victim == nil {
		l.mu.Unlock()
		l.metrics.RecordError("delete")
		err := notFoundError(id)
		l.logger.LogDelete(ctx, id, mode, err)
		return err
	}
	l.books.Remove(victim)
	l.mu.Unlock()

	l.logger.LogDelete(ctx, id, mode, nil)

	l.retire(victim, mode)
	return nil
}

// Ascend calls fn for every live book in one consistent snapshot, newest
// insertion first, until fn returns false.
func (l *Library) Ascend(ctx context.Context, fn func(Book) bool) {
	r := l.reader()
	r.Enter()
	l.books.Ascend(func(n *list.Node[Book]) bool {
		return fn(n.Value())
	})
	r.Exit()
	l.putReader(r)
}

// Len returns the number of live books.
func (l *Library) Len(ctx context.Context) int {
	r := l.reader()
	r.Enter()
	n := l.books.Len()
	r.Exit()
	l.putReader(r)
	return n
}

// Metrics returns a point-in-time metrics snapshot.
func (l *Library) Metrics(ctx context.Context) metrics.Snapshot {
	l.metrics.SetActiveReaders(uint64(l.epochs.ActiveReaders()))
	l.metrics.SetLiveNodes(uint64(max(l.live.Load(), 0)))
	return l.metrics.Snapshot()
}

// Pending returns the number of deferred retirements not yet freed.
// Diagnostic use.
func (l *Library) Pending(ctx context.Context) int {
	return l.reclaimer.Pending()
}

// Close tears the library down: every remaining node is unlinked and
// reclaimed, pending deferred retirements are run, and the background
// executor is stopped. Close is idempotent; the Library must not be used
// afterwards.
func (l *Library) Close(ctx context.Context) {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}

	l.mu.Lock()
	var drained []*list.Node[Book]
	for n := l.books.Head(); n != nil; n = l.books.Head() {
		l.books.Remove(n)
		drained = append(drained, n)
	}
	l.mu.Unlock()

	for _, n := range drained {
		l.reclaimer.RetireDefer(n)
	}
	l.reclaimer.Drain()

	l.logger.Info("library closed", "drained", len(drained))
}

// String returns the mode's name.
func (m ReclaimMode) String() string {
	if m == Defer {
		return "defer"
	}
	return "wait"
}
