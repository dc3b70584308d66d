package block

import (
	"testing"

	"github.com/cove9988/voltdb/stream"
)

func TestReserveWithinCapacity(t *testing.T) {
	b := Create(0, 1, 1024)
	if err := b.Reserve(make([]byte, 94)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if b.RawLength() != 94 {
		t.Fatalf("RawLength() = %d, want 94", b.RawLength())
	}
	if b.Offset() != 94 {
		t.Fatalf("Offset() = %s, want 94", b.Offset())
	}
}

func TestReserveCapacityExceeded(t *testing.T) {
	b := Create(0, 1, 100)
	if err := b.Reserve(make([]byte, 94)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := b.Reserve(make([]byte, 94)); err != ErrCapacityExceeded {
		t.Fatalf("Reserve: got %v, want ErrCapacityExceeded", err)
	}
	if b.RawLength() != 94 {
		t.Fatalf("RawLength() = %d after failed Reserve, want unchanged 94", b.RawLength())
	}
}

func TestMarkCommittedAndTruncate(t *testing.T) {
	b := Create(0, 1, 1024)
	if err := b.Reserve(make([]byte, 94)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	b.MarkCommitted()

	if err := b.Reserve(make([]byte, 94)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !b.HasUncommittedTail() {
		t.Fatalf("HasUncommittedTail() = false, want true")
	}

	if err := b.TruncateTo(stream.USO(94)); err != nil {
		t.Fatalf("TruncateTo: %v", err)
	}
	if b.RawLength() != 94 {
		t.Fatalf("RawLength() = %d after truncate, want 94", b.RawLength())
	}
	if b.HasUncommittedTail() {
		t.Fatalf("HasUncommittedTail() = true after truncate to committed boundary")
	}
}

func TestTruncateBeforeCommittedBoundaryFails(t *testing.T) {
	b := Create(0, 1, 1024)
	if err := b.Reserve(make([]byte, 188)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	b.MarkCommitted()

	if err := b.TruncateTo(stream.USO(94)); err == nil {
		t.Fatalf("TruncateTo: want error truncating before committed boundary")
	}
}

func TestDiscardReturnsBackingArrayAndEmptiesBlock(t *testing.T) {
	b := Create(0, 1, 1024)
	if err := b.Reserve(make([]byte, 94)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	b.MarkCommitted()

	data := b.Discard()
	if len(data) != 94 {
		t.Fatalf("Discard() returned %d bytes, want 94", len(data))
	}
	if b.RawLength() != 0 {
		t.Fatalf("RawLength() after Discard = %d, want 0", b.RawLength())
	}
	if b.CommittedLength() != 0 {
		t.Fatalf("CommittedLength() after Discard = %d, want 0", b.CommittedLength())
	}
}

func TestRemaining(t *testing.T) {
	b := Create(0, 1, 200)
	if b.Remaining() != 200 {
		t.Fatalf("Remaining() = %d, want 200", b.Remaining())
	}
	if err := b.Reserve(make([]byte, 94)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if b.Remaining() != 106 {
		t.Fatalf("Remaining() = %d, want 106", b.Remaining())
	}
}
