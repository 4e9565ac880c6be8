// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package list provides a generic RCU-style singly linked list.
//
// The list is built for one serialized writer and many concurrent readers.
// Readers traverse the chain wait-free through atomic pointer loads; the
// writer publishes every structural change (insert, replace, remove) with a
// single atomic pointer store, so a concurrent traversal observes either the
// fully-old or the fully-new linkage, never a torn mix.
//
// # Ownership
//
// While a node is linked, the list owns it. Replace and Remove unlink a node
// and mark it retired; from that point the node belongs to whoever retires
// it (see the epoch package) until its memory is reclaimed. A retired node
// keeps its next pointer intact so a reader that reached it before the
// unlink can finish its traversal through the live chain.
//
// # Dangers and Warnings
//
//   - **Writer serialization**: Insert, Replace, and Remove assume at most
//     one structural mutation in flight. Callers provide the mutual
//     exclusion; the list does not.
//   - **Reader protection**: node pointers returned by Find or visited by
//     Ascend are valid only while the caller holds a reader critical section
//     with the reclaimer that covers this list.
//   - **Retired nodes**: never re-insert a node that has been retired; get a
//     fresh one from the pool.
package list

import "sync/atomic"

// Node holds one value plus its linkage. The retired marker is unset while
// the node is reachable from the list head.
type Node[V any] struct {
	val     V
	next    atomic.Pointer[Node[V]]
	retired atomic.Bool
}

// Value returns the node's value. The value is immutable once the node is
// published.
func (n *Node[V]) Value() V {
	return n.val
}

// Next returns the next node in the chain, or nil at the end. Wait-free.
func (n *Node[V]) Next() *Node[V] {
	return n.next.Load()
}

// Retired reports whether the node has been unlinked from a list.
func (n *Node[V]) Retired() bool {
	return n.retired.Load()
}

// List is a singly linked chain with an atomic head. Insertion order is not
// semantically significant; new nodes are prepended.
type List[V any] struct {
	head atomic.Pointer[Node[V]]
}

// New creates an empty list.
func New[V any]() *List[V] {
	return &List[V]{}
}

// Head returns the first node of the current snapshot, or nil when empty.
func (l *List[V]) Head() *Node[V] {
	return l.head.Load()
}

// Insert prepends n to the chain. The CAS publish makes the fully
// initialized node visible in one step; a reader sees the chain either with
// or without n, never a partially linked node.
func (l *List[V]) Insert(n *Node[V]) {
	for {
		h := l.head.Load()
		n.next.Store(h)
		if l.head.CompareAndSwap(h, n) {
			return
		}
	}
}

// Find returns the first node in the current snapshot whose value matches,
// or nil. Wait-free; the returned pointer is valid only under the caller's
// reader critical section.
func (l *List[V]) Find(match func(V) bool) *Node[V] {
	for n := l.head.Load(); n != nil; n = n.next.Load() {
		if match(n.val) {
			return n
		}
	}
	return nil
}

// Replace swaps new into the position occupied by old. The single pointer
// store into the predecessor (or head) is the publish point. old is marked
// retired but keeps its own next pointer so in-flight traversals that
// already reached it continue into the live chain. Returns false when old is
// no longer linked.
//
// Must be called only while holding the writer serializer.
func (l *List[V]) Replace(old, new *Node[V]) bool {
	new.next.Store(old.next.Load())

	if l.head.Load() == old {
		l.head.Store(new)
		old.retired.Store(true)
		return true
	}
	for p := l.head.Load(); p != nil; p = p.next.Load() {
		if p.next.Load() == old {
			p.next.Store(new)
			old.retired.Store(true)
			return true
		}
	}
	return false
}

// Remove unlinks n from the chain with a single pointer store and marks it
// retired. n's next pointer is left intact for in-flight readers. Returns
// false when n is not linked.
//
// Must be called only while holding the writer serializer.
func (l *List[V]) Remove(n *Node[V]) bool {
	if l.head.Load() == n {
		l.head.Store(n.next.Load())
		n.retired.Store(true)
		return true
	}
	for p := l.head.Load(); p != nil; p = p.next.Load() {
		if p.next.Load() == n {
			p.next.Store(n.next.Load())
			n.retired.Store(true)
			return true
		}
	}
	return false
}

// Ascend walks the current snapshot from head to end, calling fn for each
// node until fn returns false. Wait-free; must run under a reader critical
// section.
func (l *List[V]) Ascend(fn func(*Node[V]) bool) {
	for n := l.head.Load(); n != nil; n = n.next.Load() {
		if !fn(n) {
			return
		}
	}
}

// Len counts the nodes in the current snapshot. O(n); diagnostic use.
func (l *List[V]) Len() int {
	n := 0
	for node := l.head.Load(); node != nil; node = node.next.Load() {
		n++
	}
	return n
}
