// Package buffer implements StreamBuffer, the transactional core that
// turns a sequence of per-row Append calls into the sealed,
// generation-tagged StreamBlocks handed to a TopEnd. It owns the commit,
// rollback, and generation-cut bookkeeping that stream/block and
// stream/tuple deliberately know nothing about.
//
// A StreamBuffer has no internal locking. It is driven by one goroutine
// at a time, per partition, the same cooperative scheduling assumption
// the rest of this codebase's export path runs under; callers that need
// concurrent access must serialize it themselves.
package buffer

import (
	"go.uber.org/zap"

	"github.com/cove9988/voltdb/stream"
	"github.com/cove9988/voltdb/stream/block"
	"github.com/cove9988/voltdb/stream/tuple"
)

const defaultCapacity = 2 * 1024 * 1024

// StreamBuffer accumulates serialized rows for one partition's export
// stream and hands sealed blocks to a TopEnd as transactions commit and
// blocks fill.
type StreamBuffer struct {
	schema      tuple.Schema
	topend      stream.TopEnd
	metrics     *stream.Metrics
	logger      *zap.Logger
	partitionID stream.PartitionID
	siteID      int64

	signature    string
	generationID stream.GenerationID
	capacity     int

	current *block.StreamBlock
	pending pendingChain

	openTxnID stream.TxnID
}

// New constructs a StreamBuffer for partitionID/siteID, exporting rows
// matching schema through topend. The buffer starts with no signature or
// generation set; callers must call SetSignatureAndGeneration before the
// first Append, mirroring the catalog load that must precede export on a
// freshly created partition.
func New(schema tuple.Schema, topend stream.TopEnd, partitionID stream.PartitionID, siteID int64, metrics *stream.Metrics) *StreamBuffer {
	b := &StreamBuffer{
		schema:      schema,
		topend:      topend,
		metrics:     metrics,
		logger:      zap.NewNop(),
		partitionID: partitionID,
		siteID:      siteID,
		capacity:    defaultCapacity,
		openTxnID:   stream.NoTxn,
	}
	b.current = block.Create(0, 0, b.capacity)
	return b
}

// SetLogger installs l as the buffer's structured logger. A nil l resets
// it to a no-op logger; a StreamBuffer never requires one to be set.
func (b *StreamBuffer) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	b.logger = l
}

// SetDefaultCapacity sets the byte capacity of the buffer's empty current
// block and of every block opened after this call. It is only valid while
// the buffer holds no bytes (nothing pending and nothing in the current
// block): changing capacity once blocks have already been sized under
// the old one would leave those blocks inconsistent with the buffer's own
// bookkeeping, so a non-empty buffer fails with CapacityMisconfig.
func (b *StreamBuffer) SetDefaultCapacity(capacity int) error {
	if allocated := b.AllocatedByteCount(); allocated > 0 {
		return CapacityMisconfig{Capacity: capacity, AllocatedBytes: allocated}
	}
	b.capacity = capacity
	b.current = block.Create(b.current.USO(), b.current.GenerationID(), capacity)
	return nil
}

// BytesUsed returns the USO one past the last byte ever appended to this
// buffer, committed or not. It is the mark to pass to a later RollbackTo
// that should undo everything appended from this point forward.
func (b *StreamBuffer) BytesUsed() stream.USO {
	return b.current.Offset()
}

// AllocatedByteCount returns the bytes currently held in memory by
// blocks that have not yet been pushed to the TopEnd: the pending chain
// plus whatever the current block holds.
func (b *StreamBuffer) AllocatedByteCount() int64 {
	return int64(b.pending.allocatedBytes() + b.current.RawLength())
}

// SetSignatureAndGeneration sets the logical stream signature and
// generation a subsequent Append should tag its rows with. A generation
// change forces the current block closed: if it holds any committed
// bytes, they are cut and pushed as an end-of-stream block; any
// uncommitted tail — on the current block or parked on the pending
// chain behind it — belongs to a transaction the executor will replay
// under the new generation, so it is dropped here, never pushed. If
// nothing is left to cut after the drop, the TopEnd is still notified
// with a signal-only, block-less push so it can observe the
// end-of-stream edge.
func (b *StreamBuffer) SetSignatureAndGeneration(signature string, generationID stream.GenerationID) error {
	if generationID < b.generationID {
		return GenerationRegression{Current: int64(b.generationID), Got: int64(generationID)}
	}

	b.signature = signature
	if generationID == b.generationID {
		return nil
	}

	from := b.generationID
	if err := b.discardOpenTransaction(); err != nil {
		return err
	}
	b.generationID = generationID

	if b.current.RawLength() == 0 {
		b.logger.Debug("generation change on empty block, signaling without a block",
			zap.Int32("partition", int32(b.partitionID)),
			zap.Int64("from_generation", int64(from)),
			zap.Int64("to_generation", int64(generationID)),
		)
		b.current = block.Create(b.current.USO(), generationID, b.capacity)
		b.pushSignal(true)
		return nil
	}

	return b.cutCurrentBlock(true)
}

// discardOpenTransaction drops every byte belonging to the transaction
// currently open on this buffer — the uncommitted tail of the current
// block, and any whole blocks already parked on the pending chain
// behind it — without ever handing them to the TopEnd. Committed bytes
// stay intact: when a pending chain is open, its first block becomes the
// current block again and is truncated back to its committed boundary,
// so the next block still starts where the last kept byte ends. Callers
// use this ahead of a generation change: the open transaction's bytes
// are replayed by the executor under the new generation, so carrying
// them forward into this one would duplicate them once that replay
// happens.
func (b *StreamBuffer) discardOpenTransaction() error {
	if chain := b.pending.drain(); len(chain) > 0 {
		for _, p := range chain[1:] {
			p.block.Discard()
		}
		b.current.Discard()
		b.current = chain[0].block
	}
	if b.current.HasUncommittedTail() {
		committedEnd := b.current.USO() + stream.USO(b.current.CommittedLength())
		if err := b.current.TruncateTo(committedEnd); err != nil {
			return err
		}
	}
	b.openTxnID = stream.NoTxn
	return nil
}

// Append serializes row against the buffer's schema and appends it to
// the current block, opening a new block first if the row wouldn't fit,
// or if row's generation differs from the current block's and the
// current block already holds bytes from an earlier generation.
//
// lastCommittedTxnID is the highest transaction ID known to have
// committed as of this append; it is absorbed into the committed region
// first, ahead of any generation change this same call also carries, so
// that rows already committed as of lastCommittedTxnID are never mistaken
// for part of the transaction a generation change discards.
func (b *StreamBuffer) Append(lastCommittedTxnID, txnID stream.TxnID, generationID stream.GenerationID, row tuple.Row) error {
	if generationID < b.generationID {
		return GenerationRegression{Current: int64(b.generationID), Got: int64(generationID)}
	}

	b.absorbCommit(lastCommittedTxnID)

	if generationID != b.generationID {
		if err := b.discardOpenTransaction(); err != nil {
			return err
		}
		b.generationID = generationID
		if b.current.RawLength() == 0 {
			b.current = block.Create(b.current.USO(), generationID, b.capacity)
		} else if err := b.cutCurrentBlock(true); err != nil {
			return err
		}
	}

	encoded, err := tuple.Serialize(b.schema, row)
	if err != nil {
		return err
	}
	if len(encoded) > b.capacity {
		return RowTooLarge{Size: len(encoded), Capacity: b.capacity}
	}

	if err := b.current.Reserve(encoded); err != nil {
		if err := b.cutCurrentBlock(false); err != nil {
			return err
		}
		if err := b.current.Reserve(encoded); err != nil {
			return err
		}
	}

	b.openTxnID = txnID
	b.metrics.RowAppended()
	return nil
}

// PeriodicFlush gives the buffer a chance to push a block that has been
// sitting idle: if the open transaction has committed as of
// lastCommittedTxnID, its tail is absorbed and, if the current block
// holds any committed bytes, it is cut and pushed even though it isn't
// full. A still-open transaction leaves the buffer untouched.
func (b *StreamBuffer) PeriodicFlush(lastCommittedTxnID stream.TxnID) error {
	b.absorbCommit(lastCommittedTxnID)
	if b.current.RawLength() == 0 || b.current.HasUncommittedTail() {
		return nil
	}
	return b.cutCurrentBlock(false)
}

// RollbackTo discards every byte appended since mark. mark must be at or
// after the buffer's committed floor.
//
// When mark falls within the current block this rolls back a handful of
// trailing rows, the common case. When a single open transaction has
// spanned one or more capacity-driven cuts and parked whole blocks on
// the pending chain, mark must equal the committed floor exactly: the
// entire open transaction is discarded in one shot, pending chain
// included, and the first pending block, truncated back to its committed
// boundary, becomes the current block again. Rolling back to an
// arbitrary interior offset of an already-sealed pending block is not
// supported and fails with RollbackTooFar.
func (b *StreamBuffer) RollbackTo(mark stream.USO) error {
	floor := b.committedFloor()
	if mark < floor {
		return RollbackTooFar{Mark: uint64(mark), CommittedFloor: uint64(floor)}
	}

	if mark < b.current.USO() {
		if mark != floor {
			return RollbackTooFar{Mark: uint64(mark), CommittedFloor: uint64(floor)}
		}
		chain := b.pending.drain()
		for _, p := range chain[1:] {
			p.block.Discard()
		}
		b.current.Discard()
		b.current = chain[0].block
		if err := b.current.TruncateTo(mark); err != nil {
			return err
		}
		b.openTxnID = stream.NoTxn
		b.metrics.RolledBack()
		return nil
	}

	if err := b.current.TruncateTo(mark); err != nil {
		return err
	}
	if b.current.RawLength() == b.current.CommittedLength() {
		b.openTxnID = stream.NoTxn
	}
	b.metrics.RolledBack()
	return nil
}

// committedFloor is the earliest USO this buffer can still roll back to:
// the committed boundary of the first pending block, or of the current
// block if no pending chain is open.
func (b *StreamBuffer) committedFloor() stream.USO {
	if !b.pending.empty() {
		first := b.pending.blocks[0].block
		return first.USO() + stream.USO(first.CommittedLength())
	}
	return b.current.USO() + stream.USO(b.current.CommittedLength())
}

// absorbCommit marks the current block's tail committed, and flushes any
// pending chain, once the transaction that opened that tail is known to
// have committed.
func (b *StreamBuffer) absorbCommit(lastCommittedTxnID stream.TxnID) {
	if b.openTxnID == stream.NoTxn || lastCommittedTxnID < b.openTxnID {
		return
	}
	b.current.MarkCommitted()
	if !b.pending.empty() {
		for _, p := range b.pending.drain() {
			b.push(p.block, p.endOfStream)
		}
	}
	b.openTxnID = stream.NoTxn
}

// cutCurrentBlock seals the current block and opens a fresh one at its
// end-offset and the buffer's current generation. A block with an
// uncommitted tail — one still belonging to an open, multi-block
// transaction — is parked on the pending chain instead of pushed,
// carrying endOfStream with it so the flag reaches the TopEnd whenever
// the chain is eventually drained; everything else is pushed
// immediately.
func (b *StreamBuffer) cutCurrentBlock(endOfStream bool) error {
	sealed := b.current
	nextUSO := sealed.Offset()
	b.current = block.Create(nextUSO, b.generationID, b.capacity)

	if sealed.HasUncommittedTail() {
		b.pending.push(sealed, endOfStream)
		return nil
	}
	if sealed.RawLength() > 0 {
		b.push(sealed, endOfStream)
	}
	return nil
}

func (b *StreamBuffer) push(blk *block.StreamBlock, endOfStream bool) {
	b.metrics.BlockPushed(blk.RawLength())
	b.metrics.SetAllocatedBytes(b.AllocatedByteCount())
	if endOfStream {
		b.metrics.GenerationCut()
	}
	b.topend.Push(stream.PushRequest{
		GenerationID: blk.GenerationID(),
		PartitionID:  b.partitionID,
		Signature:    b.signature,
		ColumnNames:  b.schema.ColumnNames(),
		USO:          blk.USO(),
		Block:        stream.BlockBytes(blk.Bytes()),
		EndOfStream:  endOfStream,
	})
}

func (b *StreamBuffer) pushSignal(endOfStream bool) {
	b.metrics.GenerationCut()
	b.topend.Push(stream.PushRequest{
		GenerationID: b.generationID,
		PartitionID:  b.partitionID,
		Signature:    b.signature,
		ColumnNames:  b.schema.ColumnNames(),
		USO:          b.current.USO(),
		Block:        nil,
		EndOfStream:  endOfStream,
	})
}
