package voltdb

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cove9988/voltdb/stream"
	"github.com/cove9988/voltdb/stream/topend/memory"
	"github.com/cove9988/voltdb/stream/tuple"
)

func testConfig() *ExportManagerConfig {
	return &ExportManagerConfig{
		DefaultCapacityBytes: 1024,
		Columns: []ColumnConfig{
			{Name: "COLUMN0", Type: "int64"},
			{Name: "COLUMN1", Type: "int64"},
			{Name: "COLUMN2", Type: "int64"},
			{Name: "COLUMN3", Type: "int64"},
			{Name: "COLUMN4", Type: "int64"},
		},
		Partitions: []PartitionConfig{
			{ID: 1, SiteID: 1},
		},
	}
}

func TestNewExportManagerRegistersConfiguredPartitions(t *testing.T) {
	top := memory.New()
	reg := prometheus.NewRegistry()

	m, err := NewExportManager(testConfig(), top, reg)
	if err != nil {
		t.Fatalf("NewExportManager: %v", err)
	}

	if _, err := m.lookup(1); err != nil {
		t.Fatalf("lookup(1): %v", err)
	}
	if _, err := m.lookup(2); err != ErrUnknownPartition {
		t.Fatalf("lookup(2): got %v, want ErrUnknownPartition", err)
	}
}

func TestExportManagerAppendAndFlush(t *testing.T) {
	top := memory.New()
	reg := prometheus.NewRegistry()

	m, err := NewExportManager(testConfig(), top, reg)
	if err != nil {
		t.Fatalf("NewExportManager: %v", err)
	}

	if err := m.SetSignatureAndGeneration(1, "dude", 0); err != nil {
		t.Fatalf("SetSignatureAndGeneration: %v", err)
	}

	row := tuple.Row{
		Meta:   tuple.RowMeta{TxnID: 2, Op: tuple.OpInsert},
		Values: []any{int64(1), int64(2), int64(3), int64(4), int64(5)},
	}
	if err := m.Append(1, 1, 2, 0, row); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.PeriodicFlush(2); err != nil {
		t.Fatalf("PeriodicFlush: %v", err)
	}

	drained := top.Drain(1, "dude")
	if len(drained) != 1 {
		t.Fatalf("drained = %d pushes, want 1", len(drained))
	}
	if len(drained[0].Block) != 94 {
		t.Fatalf("block len = %d, want 94", len(drained[0].Block))
	}
}

func TestRegisterPartitionIsIdempotent(t *testing.T) {
	top := memory.New()
	reg := prometheus.NewRegistry()

	m, err := NewExportManager(testConfig(), top, reg)
	if err != nil {
		t.Fatalf("NewExportManager: %v", err)
	}

	first, err := m.RegisterPartition(1, 1)
	if err != nil {
		t.Fatalf("RegisterPartition: %v", err)
	}
	second, err := m.RegisterPartition(1, 1)
	if err != nil {
		t.Fatalf("RegisterPartition: %v", err)
	}
	if first != second {
		t.Fatalf("RegisterPartition returned different state on repeat call")
	}
}

func TestQueuedExportBytesTracksPushedBlocks(t *testing.T) {
	top := memory.New()
	reg := prometheus.NewRegistry()

	m, err := NewExportManager(testConfig(), top, reg)
	if err != nil {
		t.Fatalf("NewExportManager: %v", err)
	}
	if err := m.SetSignatureAndGeneration(1, "dude", 0); err != nil {
		t.Fatalf("SetSignatureAndGeneration: %v", err)
	}

	row := tuple.Row{
		Meta:   tuple.RowMeta{TxnID: 2, Op: tuple.OpInsert},
		Values: []any{int64(1), int64(2), int64(3), int64(4), int64(5)},
	}
	if err := m.Append(1, 1, 2, 0, row); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.PeriodicFlush(2); err != nil {
		t.Fatalf("PeriodicFlush: %v", err)
	}

	got, err := m.QueuedExportBytes(1, "dude")
	if err != nil {
		t.Fatalf("QueuedExportBytes: %v", err)
	}
	if got != 94 {
		t.Fatalf("QueuedExportBytes = %d, want 94", got)
	}

	if _, err := m.QueuedExportBytes(99, "dude"); err != ErrUnknownPartition {
		t.Fatalf("QueuedExportBytes(99, ...): got %v, want ErrUnknownPartition", err)
	}
}

func TestAppendUnknownPartition(t *testing.T) {
	top := memory.New()
	reg := prometheus.NewRegistry()

	m, err := NewExportManager(testConfig(), top, reg)
	if err != nil {
		t.Fatalf("NewExportManager: %v", err)
	}

	row := tuple.Row{Values: []any{int64(1), int64(2), int64(3), int64(4), int64(5)}}
	if err := m.Append(99, stream.NoTxn, 1, 0, row); err != ErrUnknownPartition {
		t.Fatalf("Append(99, ...): got %v, want ErrUnknownPartition", err)
	}
}
