// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package rculib provides an in-memory RCU-style collection: wait-free
// reader traversal over a singly linked chain, a single serialized writer
// path publishing changes with atomic copy-on-write replacement, and
// epoch-based safe memory reclamation in blocking and deferred modes.
//
// This is the main public API for the rculib library.
//
// # Quick Start
//
//	import "github.com/kianostad/rculib"
//
//	lib := rculib.New()
//	defer lib.Close(ctx)
//
//	lib.Add(ctx, 0, "A journey of linux kernel", "Tom Hoter")
//	book, err := lib.Get(ctx, 0)            // Status starts Borrowed
//	lib.Update(ctx, 0, rculib.Available, rculib.Wait)
//	lib.Delete(ctx, 0, rculib.Defer)
//
// # Key Features
//
//   - Wait-free, lock-free reads: lookups and traversals never block,
//     never allocate, and never contend with the writer path
//   - Copy-on-write updates published with a single atomic pointer store
//   - Grace-period based reclamation: superseded nodes are freed only after
//     every reader that might still observe them has finished
//   - Two reclamation modes per call: Wait (block until the grace period
//     elapses, free synchronously) and Defer (background callback)
//   - Structured logging, metrics, and an optional capacity bound
//
// # Reclamation Modes
//
// The mode is part of each Update/Delete call's contract:
//
//	lib.Update(ctx, id, rculib.Available, rculib.Wait)  // deterministic
//	lib.Delete(ctx, id, rculib.Defer)                   // never blocks the writer
//
// Query results are identical under either mode; only when memory is freed
// differs.
//
// # Errors
//
// Operations fail with ErrNotFound, ErrAlreadyInState, or ErrNoSpace, all
// testable with errors.Is. A failed operation leaves the collection exactly
// as it was.
//
// # See Also
//
// For implementation details, see the internal/core, internal/storage/list,
// and internal/concurrency/epoch packages.
package rculib

import (
	core "github.com/kianostad/rculib/internal/core"
	"github.com/kianostad/rculib/internal/monitoring/metrics"
)

// Re-export core types.
type (
	// Library is the catalog instance.
	Library = core.Library
	// Book is one immutable-once-published record.
	Book = core.Book
	// Status is the lending state of a book.
	Status = core.Status
	// ReclaimMode selects blocking or deferred reclamation per call.
	ReclaimMode = core.ReclaimMode
	// Option configures a Library.
	Option = core.Option
	// Logger is the structured logging sink with catalog-specific helpers.
	Logger = core.Logger
	// MetricsSnapshot is a point-in-time copy of all metrics.
	MetricsSnapshot = metrics.Snapshot
)

// Status values.
const (
	Available = core.Available
	Borrowed  = core.Borrowed
)

// Reclamation modes.
const (
	Wait  = core.Wait
	Defer = core.Defer
)

// Error sentinels; test with errors.Is.
var (
	ErrNotFound       = core.ErrNotFound
	ErrAlreadyInState = core.ErrAlreadyInState
	ErrNoSpace        = core.ErrNoSpace
)

// New creates a Library with an empty chain, an unlocked writer serializer,
// and a running deferred-reclamation executor.
func New(opts ...Option) *Library {
	return core.New(opts...)
}

// Re-export options.
var (
	WithLogger          = core.WithLogger
	WithCapacity        = core.WithCapacity
	WithReclaimInterval = core.WithReclaimInterval
)

// Re-export logger constructors.
var (
	NewLogger     = core.NewLogger
	NewTextLogger = core.NewTextLogger
	NewJSONLogger = core.NewJSONLogger
	NoopLogger    = core.NoopLogger
)
