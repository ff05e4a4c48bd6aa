// Package ledger implements the append-only, hash-indexed record stores
// that make every pipeline stage idempotent and resumable.
//
// Each stage owns exactly one ledger. The backing store is a CSV file with
// a header row; loading reconstructs an in-memory key set for O(1)
// membership tests. A missing or empty file is a valid empty ledger.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Ledger is an append-only CSV-backed record store with an in-memory
// membership index over one key column.
type Ledger struct {
	path    string
	columns []string
	keyCol  int

	mu   sync.Mutex
	rows [][]string
	keys map[string]struct{}
}

// Open loads the ledger at path with the given column schema, indexing
// membership on keyColumn. A missing file is treated as an empty ledger;
// a file whose header does not match the schema, or that contains a row
// with a wrong field count, fails with ErrCorrupt.
func Open(path string, columns []string, keyColumn string) (*Ledger, error) {
	keyCol := -1
	for i, c := range columns {
		if c == keyColumn {
			keyCol = i
			break
		}
	}
	if keyCol < 0 {
		return nil, fmt.Errorf("key column %q not in schema %v", keyColumn, columns)
	}

	l := &Ledger{
		path:    path,
		columns: columns,
		keyCol:  keyCol,
		keys:    make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(columns)

	header, err := r.Read()
	if err == io.EOF {
		return l, nil // empty file, no entries yet
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if !equalFields(header, columns) {
		return nil, fmt.Errorf("%w: %s: header %v does not match schema %v", ErrCorrupt, path, header, columns)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
		l.rows = append(l.rows, row)
		l.keys[row[keyCol]] = struct{}{}
	}

	return l, nil
}

// Contains reports whether key has already been recorded.
func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok
}

// Append writes one row to the backing file and updates the in-memory
// index. The file write is flushed and synced before the index is updated,
// so a crash mid-append can only lose the row (and retry it later), never
// record a false "already done".
func (l *Ledger) Append(row []string) error {
	if len(row) != len(l.columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(row), len(l.columns))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(l.columns); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger row: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.rows = append(l.rows, row)
	l.keys[row[l.keyCol]] = struct{}{}
	return nil
}

// Rows returns all loaded and appended rows in file order.
func (l *Ledger) Rows() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.rows))
	copy(out, l.rows)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
