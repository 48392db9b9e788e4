package vectorstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"hybrid-rag/internal/domain"
)

// SnapshotFileName is the file written by FileSnapshotter inside its directory.
const SnapshotFileName = "vector_index.snap"

const snapshotHeaderSize = 16

var snapshotMagic = [8]byte{'H', 'R', 'A', 'G', 'I', 'D', 'X', '1'}

// ErrCorruptSnapshot is returned when a persisted snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Validate checks that vectors, chunks and the document map agree.
func (s *Snapshot) Validate() error {
	if len(s.Vectors) != len(s.Chunks) {
		return &domain.DimensionMismatchError{Expected: len(s.Chunks), Got: len(s.Vectors), What: "snapshot vectors"}
	}
	for i, vec := range s.Vectors {
		if len(vec) != s.Dimension {
			return &domain.DimensionMismatchError{Expected: s.Dimension, Got: len(vec), What: fmt.Sprintf("snapshot vector %d", i)}
		}
	}

	seen := 0
	for docID, positions := range s.DocumentMap {
		for _, pos := range positions {
			if pos < 0 || pos >= len(s.Chunks) {
				return fmt.Errorf("%w: document %s references position %d of %d", ErrCorruptSnapshot, docID, pos, len(s.Chunks))
			}
			if s.Chunks[pos].DocumentID() != docID {
				return fmt.Errorf("%w: position %d belongs to %s, not %s", ErrCorruptSnapshot, pos, s.Chunks[pos].DocumentID(), docID)
			}
			seen++
		}
	}
	if seen != len(s.Chunks) {
		return fmt.Errorf("%w: document map covers %d of %d chunks", ErrCorruptSnapshot, seen, len(s.Chunks))
	}
	return nil
}

type sideTable struct {
	Chunks      []domain.Chunk   `json:"chunks"`
	DocumentMap map[string][]int `json:"document_map"`
}

// FileSnapshotter persists snapshots to a single file in a directory.
// Writes go to a temporary file in the same directory which is synced and
// renamed over the previous snapshot, so a crash leaves the old file intact.
type FileSnapshotter struct {
	dir string
}

// NewFileSnapshotter creates a snapshotter rooted at dir.
func NewFileSnapshotter(dir string) *FileSnapshotter {
	return &FileSnapshotter{dir: dir}
}

// Path returns the snapshot file path.
func (s *FileSnapshotter) Path() string {
	return filepath.Join(s.dir, SnapshotFileName)
}

// Save writes snap atomically.
func (s *FileSnapshotter) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, SnapshotFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	w := bufio.NewWriter(tmp)
	if err := EncodeSnapshot(w, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. It returns nil, nil when no snapshot exists.
func (s *FileSnapshotter) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	return DecodeSnapshot(bufio.NewReader(f), info.Size())
}

// EncodeSnapshot writes the binary snapshot format: magic, dimension and count
// as little-endian uint32, the float32 vector blob, then a JSON side table.
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var header [snapshotHeaderSize]byte
	copy(header[:8], snapshotMagic[:])
	binary.LittleEndian.PutUint32(header[8:12], uint32(snap.Dimension))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(snap.Vectors)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}

	for _, vec := range snap.Vectors {
		if _, err := w.Write(EncodeVector(vec)); err != nil {
			return fmt.Errorf("failed to write snapshot vectors: %w", err)
		}
	}

	docMap := snap.DocumentMap
	if docMap == nil {
		docMap = map[string][]int{}
	}
	if err := json.NewEncoder(w).Encode(sideTable{Chunks: snap.Chunks, DocumentMap: docMap}); err != nil {
		return fmt.Errorf("failed to write snapshot side table: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot. size is the total
// length of the encoded snapshot; a header claiming more vector data than that
// is rejected before anything is allocated.
func DecodeSnapshot(r io.Reader, size int64) (*Snapshot, error) {
	var header [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptSnapshot, err)
	}
	if !bytes.Equal(header[:8], snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	count := int(binary.LittleEndian.Uint32(header[12:16]))
	if err := checkHeader(dim, count, size); err != nil {
		return nil, err
	}

	vectors := make([][]float32, count)
	var buf []byte
	if count > 0 {
		buf = make([]byte, dim*4)
	}
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: vector %d: %v", ErrCorruptSnapshot, i, err)
		}
		vec, err := DecodeVector(buf)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}

	var side sideTable
	if err := json.NewDecoder(r).Decode(&side); err != nil {
		return nil, fmt.Errorf("%w: side table: %v", ErrCorruptSnapshot, err)
	}
	if side.DocumentMap == nil {
		side.DocumentMap = map[string][]int{}
	}

	snap := &Snapshot{
		Dimension:   dim,
		Vectors:     vectors,
		Chunks:      side.Chunks,
		DocumentMap: side.DocumentMap,
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, nil
}

// checkHeader rejects dimension and count values the encoded size cannot hold.
func checkHeader(dim, count int, size int64) error {
	if dim == 0 && count > 0 {
		return fmt.Errorf("%w: %d vectors of dimension 0", ErrCorruptSnapshot, count)
	}
	if count == 0 {
		return nil
	}
	payload := uint64(max(size-snapshotHeaderSize, 0))
	if uint64(dim)*4 > payload/uint64(count) {
		return fmt.Errorf("%w: header claims %d vectors of dimension %d but only %d bytes follow",
			ErrCorruptSnapshot, count, dim, payload)
	}
	return nil
}

// EncodeVector packs vec as little-endian float32 bytes.
func EncodeVector(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// DecodeVector unpacks bytes written by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob length %d is not a multiple of 4", ErrCorruptSnapshot, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
