// Package block implements StreamBlock, the fixed-capacity byte arena a
// StreamBuffer appends serialized rows into. A StreamBlock knows nothing
// about transactions or schemas; it only tracks raw bytes, the USO its
// first byte represents, and how much of itself is committed.
package block

import (
	"errors"
	"fmt"

	"github.com/cove9988/voltdb/stream"
)

// ErrCapacityExceeded is returned by Reserve when a row would not fit in
// the block's remaining capacity. The caller is expected to seal the
// current block and open a new one.
var ErrCapacityExceeded = errors.New("block: capacity exceeded")

// StreamBlock is a contiguous byte arena holding zero or more serialized
// rows, starting at a fixed USO. Bytes beyond Committed but within
// RawLength belong to a transaction that has appended to this block but
// not yet committed; RollbackTo in stream/buffer trims them back off.
//
// A StreamBlock has no internal locking: it is owned by exactly one
// StreamBuffer at a time, and every method below assumes single-threaded
// access, matching the cooperative scheduling the export core runs
// under.
type StreamBlock struct {
	uso          stream.USO
	generationID stream.GenerationID
	capacity     int
	data         []byte
	committed    int
}

// Create allocates a new, empty StreamBlock starting at uso with room for
// capacity bytes.
func Create(uso stream.USO, generationID stream.GenerationID, capacity int) *StreamBlock {
	return &StreamBlock{
		uso:          uso,
		generationID: generationID,
		capacity:     capacity,
		data:         make([]byte, 0, capacity),
	}
}

// Reserve appends raw to the block's uncommitted tail. It fails with
// ErrCapacityExceeded, and leaves the block unmodified, if raw would not
// fit in the remaining capacity.
func (b *StreamBlock) Reserve(raw []byte) error {
	if len(b.data)+len(raw) > b.capacity {
		return ErrCapacityExceeded
	}
	b.data = append(b.data, raw...)
	return nil
}

// MarkCommitted advances the block's committed boundary to its current
// raw length, absorbing every byte appended since the last commit. It is
// called once a transaction's commit point is known to have passed this
// block.
func (b *StreamBlock) MarkCommitted() {
	b.committed = len(b.data)
}

// TruncateTo discards every byte at or after offset uso within this
// block, used to roll back a transaction that never committed. offset
// must fall within [USO(), USO()+RawLength()]; offsets before the
// block's committed boundary are a caller error since committed bytes
// are never rolled back.
func (b *StreamBlock) TruncateTo(offset stream.USO) error {
	if offset < b.uso {
		return fmt.Errorf("block: truncate offset %s before block start %s", offset, b.uso)
	}
	rel := int(offset - b.uso)
	if rel < b.committed {
		return fmt.Errorf("block: truncate offset %s precedes committed boundary", offset)
	}
	if rel > len(b.data) {
		return fmt.Errorf("block: truncate offset %s beyond raw length", offset)
	}
	b.data = b.data[:rel]
	return nil
}

// RawLength returns the total number of bytes appended to the block,
// committed or not.
func (b *StreamBlock) RawLength() int {
	return len(b.data)
}

// CommittedLength returns the number of bytes in the block that have
// been absorbed by a commit.
func (b *StreamBlock) CommittedLength() int {
	return b.committed
}

// Remaining returns how many more bytes the block can hold before
// Reserve starts failing.
func (b *StreamBlock) Remaining() int {
	return b.capacity - len(b.data)
}

// USO returns the Universal Stream Offset of the block's first byte.
func (b *StreamBlock) USO() stream.USO {
	return b.uso
}

// Offset returns the USO one past the block's last raw byte, i.e. the
// USO the next appended row would start at.
func (b *StreamBlock) Offset() stream.USO {
	return b.uso + stream.USO(len(b.data))
}

// GenerationID returns the stream-generation this block was opened
// under.
func (b *StreamBlock) GenerationID() stream.GenerationID {
	return b.generationID
}

// Bytes returns the block's raw contents. The returned slice aliases the
// block's internal storage and must not be retained past the next call
// that mutates the block.
func (b *StreamBlock) Bytes() []byte {
	return b.data
}

// HasUncommittedTail reports whether the block holds any bytes appended
// since the last MarkCommitted call.
func (b *StreamBlock) HasUncommittedTail() bool {
	return b.committed < len(b.data)
}

// Discard severs the block's backing array from the block and returns it,
// leaving the block empty. It is the Go-idiomatic stand-in for returning a
// block's memory to a pool on discard: a pending chain abandoned by
// RollbackTo calls Discard on every block it drops rather than just
// letting them become unreachable, so a pool-backed StreamBlock could
// recycle the slice instead of leaving it for the garbage collector.
func (b *StreamBlock) Discard() []byte {
	data := b.data
	b.data = nil
	b.committed = 0
	return data
}
