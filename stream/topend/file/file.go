// Package file implements a disk-backed stream.TopEnd: every pushed
// block is appended, gzip-compressed, to a per-partition/signature file
// under a root directory, framed the way the row-export core's own
// snapshot format frames its data — a magic number, a small fixed
// header, then a gzip body — so that a later process can mmap the file
// and walk its frames in order (see ReadFrames).
package file

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cove9988/voltdb/stream"
)

// frameMagic tags the start of every record this package writes, the
// same role snapshotMagic plays in the row-export core's own disk
// format.
const frameMagic = uint32(0xc0ffee11)

// frameHeader is the fixed-width, uncompressed prefix of one record.
// It is always 4+8+8+1+4 = 25 bytes.
type frameHeader struct {
	Magic        uint32
	GenerationID int64
	USO          uint64
	EndOfStream  uint8
	BodyLength   uint32
}

const frameHeaderSize = 4 + 8 + 8 + 1 + 4

// TopEnd is a stream.TopEnd that persists every pushed block to disk
// under dir, one append-only file per partition/signature pair named
// "<partitionID>-<signature>.block". QueuedExportBytes reports the
// uncompressed byte length of every block pushed to that file since this
// TopEnd opened it; the count never decreases.
type TopEnd struct {
	dir string

	mu    sync.Mutex
	files map[queueKey]*queueFile
}

type queueKey struct {
	partitionID stream.PartitionID
	signature   string
}

type queueFile struct {
	f           *os.File
	queuedBytes int64
}

var _ stream.TopEnd = (*TopEnd)(nil)

// New returns a TopEnd that writes under dir, creating it if necessary.
func New(dir string) (*TopEnd, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create %s: %w", dir, err)
	}
	return &TopEnd{dir: dir, files: make(map[queueKey]*queueFile)}, nil
}

// Push appends req as one gzip-compressed frame to the partition's
// queue file, fsyncing when req.Sync is set. A nil req.Block (a
// signal-only generation edge) is written as a frame whose body is an
// empty gzip stream, so the edge survives a restart; ReadFrames decodes
// it back to a nil Block.
func (t *TopEnd) Push(req stream.PushRequest) error {
	key := queueKey{partitionID: req.PartitionID, signature: req.Signature}

	t.mu.Lock()
	qf, err := t.openLocked(key)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	body, err := gzipCompress(req.Block)
	if err != nil {
		return err
	}

	hdr := frameHeader{
		Magic:        frameMagic,
		GenerationID: int64(req.GenerationID),
		USO:          uint64(req.USO),
		BodyLength:   uint32(len(body)),
	}
	if req.EndOfStream {
		hdr.EndOfStream = 1
	}

	if err := writeFrame(qf.f, hdr, body); err != nil {
		return err
	}
	if req.Sync {
		if err := qf.f.Sync(); err != nil {
			return fmt.Errorf("file: fsync: %w", err)
		}
	}

	t.mu.Lock()
	qf.queuedBytes += int64(len(req.Block))
	t.mu.Unlock()
	return nil
}

// QueuedExportBytes reports the uncompressed bytes recorded for
// partitionID/signature since the queue file was opened.
func (t *TopEnd) QueuedExportBytes(partitionID stream.PartitionID, signature string) int64 {
	key := queueKey{partitionID: partitionID, signature: signature}
	t.mu.Lock()
	defer t.mu.Unlock()
	qf, ok := t.files[key]
	if !ok {
		return 0
	}
	return qf.queuedBytes
}

// Close closes every open queue file.
func (t *TopEnd) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, qf := range t.files {
		if err := qf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TopEnd) openLocked(key queueKey) (*queueFile, error) {
	if qf, ok := t.files[key]; ok {
		return qf, nil
	}
	path := filepath.Join(t.dir, fmt.Sprintf("%d-%s.block", key.partitionID, sanitize(key.signature)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", path, err)
	}
	qf := &queueFile{f: f}
	t.files[key] = qf
	return qf, nil
}

func sanitize(signature string) string {
	return filepath.Clean(signature)
}

func writeFrame(w io.Writer, hdr frameHeader, body []byte) error {
	if err := binary.Write(w, binary.BigEndian, hdr.Magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.GenerationID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.USO); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.EndOfStream); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.BodyLength); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func gzipCompress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if len(raw) > 0 {
		if _, err := gw.Write(raw); err != nil {
			return nil, err
		}
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFrames mmaps path read-only and decodes every frame it holds, in
// file order. It is the read side of the format Push writes, intended
// for an offline reader replaying a partition's queue file rather than
// for the hot Push path.
func ReadFrames(path string) ([]stream.PushRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("file: mmap %s: %w", path, err)
	}
	defer unix.Munmap(data)

	var reqs []stream.PushRequest
	for off := 0; off < len(data); {
		if off+frameHeaderSize > len(data) {
			return nil, fmt.Errorf("file: truncated frame header at offset %d", off)
		}
		magic := binary.BigEndian.Uint32(data[off : off+4])
		if magic != frameMagic {
			return nil, fmt.Errorf("file: bad frame magic %x at offset %d", magic, off)
		}
		generationID := int64(binary.LittleEndian.Uint64(data[off+4 : off+12]))
		uso := binary.LittleEndian.Uint64(data[off+12 : off+20])
		endOfStream := data[off+20] != 0
		bodyLen := binary.LittleEndian.Uint32(data[off+21 : off+25])
		off += frameHeaderSize

		if off+int(bodyLen) > len(data) {
			return nil, fmt.Errorf("file: truncated frame body at offset %d", off)
		}
		block, err := gzipDecompress(data[off : off+int(bodyLen)])
		if err != nil {
			return nil, err
		}
		off += int(bodyLen)

		req := stream.PushRequest{
			GenerationID: stream.GenerationID(generationID),
			USO:          stream.USO(uso),
			EndOfStream:  endOfStream,
		}
		if len(block) > 0 {
			req.Block = stream.BlockBytes(block)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func gzipDecompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
