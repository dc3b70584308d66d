package memory

import (
	"testing"

	"github.com/cove9988/voltdb/stream"
)

func TestPushAndQueuedExportBytes(t *testing.T) {
	top := New()

	if err := top.Push(stream.PushRequest{
		PartitionID: 1, Signature: "dude", USO: 0, Block: make(stream.BlockBytes, 94),
	}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := top.Push(stream.PushRequest{
		PartitionID: 1, Signature: "dude", USO: 94, Block: make(stream.BlockBytes, 188),
	}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if got, want := top.QueuedExportBytes(1, "dude"), int64(282); got != want {
		t.Fatalf("QueuedExportBytes = %d, want %d", got, want)
	}
	if got := top.QueuedExportBytes(2, "dude"); got != 0 {
		t.Fatalf("QueuedExportBytes for unknown partition = %d, want 0", got)
	}
}

func TestDrainEmptiesQueue(t *testing.T) {
	top := New()
	top.Push(stream.PushRequest{PartitionID: 1, Signature: "dude", Block: make(stream.BlockBytes, 94)})

	drained := top.Drain(1, "dude")
	if len(drained) != 1 {
		t.Fatalf("Drain returned %d pushes, want 1", len(drained))
	}
	if got := top.QueuedExportBytes(1, "dude"); got != 0 {
		t.Fatalf("QueuedExportBytes after drain = %d, want 0", got)
	}
}

func TestSignalOnlyPushContributesNoBytes(t *testing.T) {
	top := New()
	top.Push(stream.PushRequest{PartitionID: 1, Signature: "dude", Block: nil, EndOfStream: true})

	if got := top.QueuedExportBytes(1, "dude"); got != 0 {
		t.Fatalf("QueuedExportBytes = %d, want 0", got)
	}
	drained := top.Drain(1, "dude")
	if len(drained) != 1 || !drained[0].EndOfStream {
		t.Fatalf("Drain = %+v, want one EndOfStream push", drained)
	}
}
