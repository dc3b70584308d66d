// Package voltdb provides a transactional row-export engine: the
// per-partition buffering, commit/rollback bookkeeping, and stream
// sealing that turns a sequence of appended table rows into the sealed
// byte blocks a downstream TopEnd persists and forwards.
//
// ExportManager is the entry point. It owns one stream/buffer.StreamBuffer
// per partition and routes Append, RollbackTo and generation changes to
// the partition they name; PeriodicFlush sweeps every registered
// partition.
package voltdb

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cove9988/voltdb/stream"
	"github.com/cove9988/voltdb/stream/buffer"
	"github.com/cove9988/voltdb/stream/tuple"
)

// ErrUnknownPartition is returned by every ExportManager operation that
// names a PartitionID no RegisterPartition call has ever registered.
var ErrUnknownPartition = errors.New("voltdb: unknown partition")

// partitionExport is one partition's export state: the StreamBuffer
// doing the real work, plus the identity RegisterPartition assigned it.
type partitionExport struct {
	id     stream.PartitionID
	siteID int64
	buf    *buffer.StreamBuffer
}

// ExportManager serves the export stream for every partition a process
// hosts. It is safe for concurrent use across different partitions;
// operations against the same PartitionID must still be serialized by
// the caller, matching the single-threaded-per-partition assumption
// stream/buffer.StreamBuffer runs under.
type ExportManager struct {
	schema     tuple.Schema
	topend     stream.TopEnd
	registerer prometheus.Registerer
	capacity   int

	registry partitionRegistry
}

// NewExportManager builds an ExportManager from cfg, pushing sealed
// blocks to topend and registering its Prometheus instruments against
// registerer. Every partition named in cfg.Partitions is registered
// immediately, the moral equivalent of the catalog load that hands each
// partition its site ID before the first row ever reaches it.
func NewExportManager(cfg *ExportManagerConfig, topend stream.TopEnd, registerer prometheus.Registerer) (*ExportManager, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}

	m := &ExportManager{
		schema:     schema,
		topend:     topend,
		registerer: registerer,
		capacity:   cfg.DefaultCapacityBytes,
	}

	for _, pc := range cfg.Partitions {
		id := stream.PartitionID(pc.ID)
		if _, err := m.RegisterPartition(id, pc.SiteID); err != nil {
			return nil, fmt.Errorf("voltdb: register partition %d: %w", pc.ID, err)
		}

		signature := pc.Signature
		if signature == "" {
			signature = uuid.NewString()
		}
		if err := m.SetSignatureAndGeneration(id, signature, 0); err != nil {
			return nil, fmt.Errorf("voltdb: set initial generation for partition %d: %w", pc.ID, err)
		}
	}

	return m, nil
}

// RegisterPartition creates the export state for a new partition and
// publishes it to the registry. Calling it twice for the same
// PartitionID is not an error: the first registration wins and later
// calls return the existing state, mirroring the FIND_PARTITION /
// create-if-missing retry loop this registry's insert path is modeled
// on.
func (m *ExportManager) RegisterPartition(id stream.PartitionID, siteID int64) (*partitionExport, error) {
	if existing := m.registry.find(id); existing != nil {
		return existing, nil
	}

	metrics, err := stream.NewMetrics(m.registerer, fmt.Sprintf("%d", id))
	if err != nil {
		return nil, fmt.Errorf("voltdb: register metrics for partition %d: %w", id, err)
	}

	buf := buffer.New(m.schema, m.topend, id, siteID, metrics)
	buf.SetLogger(logger)
	if m.capacity > 0 {
		if err := buf.SetDefaultCapacity(m.capacity); err != nil {
			return nil, err
		}
	}

	expt := &partitionExport{id: id, siteID: siteID, buf: buf}
	published, inserted := m.registry.insertIfAbsent(id, expt)
	if !inserted {
		logger.Sugar().Infow("partition already registered, discarding race loser", "partition", id)
	}
	return published, nil
}

func (m *ExportManager) lookup(id stream.PartitionID) (*partitionExport, error) {
	expt := m.registry.find(id)
	if expt == nil {
		return nil, ErrUnknownPartition
	}
	return expt, nil
}

// Append serializes row and appends it to the named partition's current
// block. See stream/buffer.StreamBuffer.Append for the full commit and
// generation-cut semantics.
func (m *ExportManager) Append(id stream.PartitionID, lastCommittedTxnID, txnID stream.TxnID, generationID stream.GenerationID, row tuple.Row) error {
	expt, err := m.lookup(id)
	if err != nil {
		return err
	}
	return expt.buf.Append(lastCommittedTxnID, txnID, generationID, row)
}

// RollbackTo undoes every row appended to the named partition since
// mark.
func (m *ExportManager) RollbackTo(id stream.PartitionID, mark stream.USO) error {
	expt, err := m.lookup(id)
	if err != nil {
		return err
	}
	return expt.buf.RollbackTo(mark)
}

// SetSignatureAndGeneration updates the named partition's logical stream
// signature and generation, cutting its current block if a generation
// change is in effect.
func (m *ExportManager) SetSignatureAndGeneration(id stream.PartitionID, signature string, generationID stream.GenerationID) error {
	expt, err := m.lookup(id)
	if err != nil {
		return err
	}
	return expt.buf.SetSignatureAndGeneration(signature, generationID)
}

// BytesUsed returns the named partition's current USO mark.
func (m *ExportManager) BytesUsed(id stream.PartitionID) (stream.USO, error) {
	expt, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return expt.buf.BytesUsed(), nil
}

// AllocatedByteCount returns the bytes the named partition currently
// holds in memory and has not yet pushed: its pending chain plus its
// current block.
func (m *ExportManager) AllocatedByteCount(id stream.PartitionID) (int64, error) {
	expt, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return expt.buf.AllocatedByteCount(), nil
}

// QueuedExportBytes reports the TopEnd's queued-byte depth for the named
// partition's current signature, the same (partitionId, signature) key
// the original Topend::getQueuedExportBytes interface uses. It is a thin
// pass-through to the configured TopEnd; ExportManager keeps no count of
// its own.
func (m *ExportManager) QueuedExportBytes(id stream.PartitionID, signature string) (int64, error) {
	if _, err := m.lookup(id); err != nil {
		return 0, err
	}
	return m.topend.QueuedExportBytes(id, signature), nil
}

// PeriodicFlush gives every registered partition a chance to push a
// block that has gone idle, the same sweep-every-partition shape the
// row-export core's own background compaction pass uses, generalized
// from disk compaction to export flushing.
func (m *ExportManager) PeriodicFlush(lastCommittedTxnID stream.TxnID) error {
	for _, expt := range m.registry.all() {
		if err := expt.buf.PeriodicFlush(lastCommittedTxnID); err != nil {
			return fmt.Errorf("voltdb: periodic flush partition %d: %w", expt.id, err)
		}
	}
	return nil
}
