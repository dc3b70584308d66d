package stream

import "fmt"

// USO is a Universal Stream Offset: a monotonically non-decreasing count
// of bytes ever produced by a partition's export stream. It never resets
// for the lifetime of the partition.
type USO uint64

// TxnID identifies a transaction as assigned by the executor. Transaction
// IDs are totally ordered within a partition.
type TxnID int64

// NoTxn is the sentinel open_txn_id value meaning "no transaction tail is
// currently open in the current block".
const NoTxn TxnID = -1

// GenerationID tags a block with the stream-generation in effect when the
// block was opened. Generations change on catalog updates and
// export-window advances; they are monotonically non-decreasing within a
// partition.
type GenerationID int64

// Sequence is the per-row sequence number supplied by the executor.
type Sequence int64

// PartitionID identifies the partition whose export stream a block
// belongs to.
type PartitionID int32

func (u USO) String() string {
	return fmt.Sprintf("uso:%d", uint64(u))
}
