package voltdb

import (
	"sync/atomic"
	"unsafe"

	"github.com/cove9988/voltdb/stream"
)

// partitionRegistry is a lock-free, insert-mostly index of the
// partitionExports an ExportManager has created, keyed by PartitionID.
// Partitions are registered once, at catalog load, and never removed
// for the life of the process, so a CAS-linked list needs no Hold or
// Release bookkeeping: once published, a node is immutable and safe to
// read from any goroutine without synchronization.
type partitionRegistry struct {
	head unsafe.Pointer // *registryNode
}

type registryNode struct {
	id   stream.PartitionID
	expt *partitionExport
	next unsafe.Pointer // *registryNode
}

// find returns the partitionExport registered for id, or nil.
func (r *partitionRegistry) find(id stream.PartitionID) *partitionExport {
	n := (*registryNode)(atomic.LoadPointer(&r.head))
	for n != nil {
		if n.id == id {
			return n.expt
		}
		n = (*registryNode)(atomic.LoadPointer(&n.next))
	}
	return nil
}

// insertIfAbsent publishes expt under id unless a node for id already
// exists, in which case it returns the existing one and ok=false. Racing
// insertIfAbsent calls for different ids both succeed; racing calls for
// the same id leave exactly one winner.
func (r *partitionRegistry) insertIfAbsent(id stream.PartitionID, expt *partitionExport) (*partitionExport, bool) {
	n := &registryNode{id: id, expt: expt}

retry:
	if existing := r.find(id); existing != nil {
		return existing, false
	}

	head := atomic.LoadPointer(&r.head)
	n.next = head
	if !atomic.CompareAndSwapPointer(&r.head, head, unsafe.Pointer(n)) {
		goto retry
	}
	return expt, true
}

// all returns every registered partitionExport. Order is unspecified.
func (r *partitionRegistry) all() []*partitionExport {
	var out []*partitionExport
	n := (*registryNode)(atomic.LoadPointer(&r.head))
	for n != nil {
		out = append(out, n.expt)
		n = (*registryNode)(atomic.LoadPointer(&n.next))
	}
	return out
}
