// Package memory implements an in-process stream.TopEnd that queues
// pushed blocks per partition/signature pair, the same role the
// original row-export core's DummyTopend plays in its own tests: a
// trivial sink that remembers what it was given so a caller can inspect
// or drain it.
package memory

import (
	"sync"

	"github.com/cove9988/voltdb/stream"
)

// pushed is one recorded call to Push, kept in arrival order.
type pushed struct {
	req stream.PushRequest
}

// queueKey identifies one logical export stream within a TopEnd.
type queueKey struct {
	partitionID stream.PartitionID
	signature   string
}

// TopEnd is a stream.TopEnd that holds every pushed block in memory,
// grouped by partition and signature, until a caller calls Drain. It
// never fails a Push and never blocks; QueuedExportBytes reports the
// sum of raw block lengths still held for the given key, matching the
// sum-of-rawLength accounting the row-export core's topend tests use.
//
// A TopEnd instance is safe for concurrent use by multiple partitions'
// StreamBuffers, even though each individual StreamBuffer is not.
type TopEnd struct {
	mu     sync.Mutex
	queues map[queueKey][]pushed
}

var _ stream.TopEnd = (*TopEnd)(nil)

// New returns an empty, ready-to-use TopEnd.
func New() *TopEnd {
	return &TopEnd{queues: make(map[queueKey][]pushed)}
}

// Push records req. A nil req.Block (a signal-only push carrying just a
// generation edge) is recorded like any other push but contributes zero
// bytes to QueuedExportBytes.
func (t *TopEnd) Push(req stream.PushRequest) error {
	key := queueKey{partitionID: req.PartitionID, signature: req.Signature}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queues[key] = append(t.queues[key], pushed{req: req})
	return nil
}

// QueuedExportBytes sums the raw block length of every push recorded for
// partitionID/signature that hasn't been removed by Drain.
func (t *TopEnd) QueuedExportBytes(partitionID stream.PartitionID, signature string) int64 {
	key := queueKey{partitionID: partitionID, signature: signature}
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for _, p := range t.queues[key] {
		total += int64(len(p.req.Block))
	}
	return total
}

// Drain removes and returns every push recorded for partitionID and
// signature, in the order Push received them.
func (t *TopEnd) Drain(partitionID stream.PartitionID, signature string) []stream.PushRequest {
	key := queueKey{partitionID: partitionID, signature: signature}
	t.mu.Lock()
	defer t.mu.Unlock()
	recorded := t.queues[key]
	delete(t.queues, key)

	out := make([]stream.PushRequest, len(recorded))
	for i, p := range recorded {
		out[i] = p.req
	}
	return out
}
