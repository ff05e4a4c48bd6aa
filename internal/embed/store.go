package embed

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// vector array file layout: 4-byte magic, uint32 dimension (little
// endian), then packed little-endian float32 rows. Row order must match
// the embedding ledger's append order.
var storeMagic = [4]byte{'L', 'X', 'V', '1'}

const headerSize = 8

// VectorStore is the persistent flat vector array of shape
// [num_rows, dim].
type VectorStore struct {
	path string
	dim  int
}

// OpenVectorStore opens (or prepares to create) the array at path with
// the given dimension. An existing file must carry a matching header.
func OpenVectorStore(path string, dim int) (*VectorStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dim)
	}
	s := &VectorStore{path: path, dim: dim}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	defer f.Close()

	var header [headerSize]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, fmt.Errorf("read vector store header: %w", err)
	}
	if [4]byte(header[:4]) != storeMagic {
		return nil, fmt.Errorf("vector store %s: bad magic", path)
	}
	if got := int(binary.LittleEndian.Uint32(header[4:])); got != dim {
		return nil, fmt.Errorf("%w: store has dim %d, want %d", ErrDimensionMismatch, got, dim)
	}
	return s, nil
}

// Rows returns the number of vector rows currently stored.
func (s *VectorStore) Rows() (int, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	payload := info.Size() - headerSize
	rowSize := int64(s.dim) * 4
	if payload < 0 || payload%rowSize != 0 {
		return 0, fmt.Errorf("vector store %s: size %d not a whole number of %d-dim rows", s.path, info.Size(), s.dim)
	}
	return int(payload / rowSize), nil
}

// Append writes vectors to the end of the array, creating the file (and
// header) on first use. The write is synced before returning so the
// paired ledger append never gets ahead of the array on disk.
func (s *VectorStore) Append(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("%w: row %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), s.dim)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create embeddings dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open vector store for append: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		var header [headerSize]byte
		copy(header[:4], storeMagic[:])
		binary.LittleEndian.PutUint32(header[4:], uint32(s.dim))
		if _, err := f.Write(header[:]); err != nil {
			return fmt.Errorf("write vector store header: %w", err)
		}
	}

	buf := make([]byte, len(vectors)*s.dim*4)
	off := 0
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("append vectors: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync vector store: %w", err)
	}
	return nil
}

// Load reads the full array into memory in row order.
func (s *VectorStore) Load() ([][]float32, error) {
	rows, err := s.Rows()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read vector store: %w", err)
	}
	payload := data[headerSize:]

	out := make([][]float32, rows)
	off := 0
	for i := range out {
		row := make([]float32, s.dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			off += 4
		}
		out[i] = row
	}
	return out, nil
}
