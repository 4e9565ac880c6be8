// Licensed under the MIT License. See LICENSE file in the project root for details.

package list

import "sync"

// NodePool recycles Node allocations. Nodes come back to the pool only after
// their grace period has elapsed, so a reused node can never be observed by
// a reader that still holds a reference to its previous incarnation.
type NodePool[V any] struct {
	pool sync.Pool
}

// NewNodePool creates a new NodePool.
func NewNodePool[V any]() *NodePool[V] {
	return &NodePool[V]{
		pool: sync.Pool{
			New: func() interface{} {
				return &Node[V]{}
			},
		},
	}
}

// Get returns an unlinked node carrying val.
func (p *NodePool[V]) Get(val V) *Node[V] {
	n := p.pool.Get().(*Node[V])
	n.val = val
	return n
}

// Put returns a reclaimed node to the pool after resetting its fields. The
// caller guarantees no reader can still reference n.
func (p *NodePool[V]) Put(n *Node[V]) {
	var zero V
	n.val = zero
	n.next.Store(nil)
	n.retired.Store(false)
	p.pool.Put(n)
}
