package ledger

import (
	"fmt"
	"time"
)

// Column schemas for the four stage ledgers. The on-disk format is fixed:
// other tooling reads these files directly.
var (
	RawColumns       = []string{"id", "title", "source", "url", "timestamp", "file_path", "hash"}
	ProcessedColumns = []string{"id", "source_path", "target_path", "timestamp", "source_hash", "target_hash"}
	ChunkedColumns   = []string{"doc_id", "chunk_id", "chunk_index", "timestamp", "doc_processed_path", "hash"}
	EmbeddedColumns  = []string{"doc_id", "doc_processed_path", "chunk_id", "chunk_hash", "timestamp"}
)

// OpenRaw opens the fetch-stage ledger, keyed on raw content hash.
func OpenRaw(path string) (*Ledger, error) {
	return Open(path, RawColumns, "hash")
}

// OpenProcessed opens the extract-stage ledger, keyed on document id.
func OpenProcessed(path string) (*Ledger, error) {
	return Open(path, ProcessedColumns, "id")
}

// OpenChunked opens the chunk-stage ledger, keyed on document id so
// resumability is whole-document: a document is either fully chunked or
// not chunked at all.
func OpenChunked(path string) (*Ledger, error) {
	return Open(path, ChunkedColumns, "doc_id")
}

// OpenEmbedded opens the embed-stage ledger, keyed on chunk content hash.
func OpenEmbedded(path string) (*Ledger, error) {
	return Open(path, EmbeddedColumns, "chunk_hash")
}

// RawRecord is one fetched source document. Immutable once written.
type RawRecord struct {
	ID        string // stable hash of the source-specific identifier, not of content
	Title     string
	Source    string
	URL       string
	Timestamp time.Time
	FilePath  string
	Hash      string // sha256 of the raw bytes, the dedup key
}

func (r RawRecord) Fields() []string {
	return []string{r.ID, r.Title, r.Source, r.URL, formatTime(r.Timestamp), r.FilePath, r.Hash}
}

func RawFromFields(f []string) (RawRecord, error) {
	if len(f) != len(RawColumns) {
		return RawRecord{}, ErrFieldCount
	}
	return RawRecord{
		ID: f[0], Title: f[1], Source: f[2], URL: f[3],
		Timestamp: parseTime(f[4]), FilePath: f[5], Hash: f[6],
	}, nil
}

// ProcessedRecord is one normalized text output, one-to-one with a RawRecord.
type ProcessedRecord struct {
	ID         string
	SourcePath string
	TargetPath string
	Timestamp  time.Time
	SourceHash string // carried from the raw record
	TargetHash string // sha256 of the cleaned text, informational for audit
}

func (r ProcessedRecord) Fields() []string {
	return []string{r.ID, r.SourcePath, r.TargetPath, formatTime(r.Timestamp), r.SourceHash, r.TargetHash}
}

func ProcessedFromFields(f []string) (ProcessedRecord, error) {
	if len(f) != len(ProcessedColumns) {
		return ProcessedRecord{}, ErrFieldCount
	}
	return ProcessedRecord{
		ID: f[0], SourcePath: f[1], TargetPath: f[2],
		Timestamp: parseTime(f[3]), SourceHash: f[4], TargetHash: f[5],
	}, nil
}

// ChunkRecord is one chunk of a document's normalized text.
type ChunkRecord struct {
	DocID            string
	ChunkID          string // DocID + "_" + ChunkIndex
	ChunkIndex       int
	Timestamp        time.Time
	DocProcessedPath string
	Hash             string // sha256 of the chunk content, dedup key for embedding
}

func (r ChunkRecord) Fields() []string {
	return []string{r.DocID, r.ChunkID, fmt.Sprintf("%d", r.ChunkIndex), formatTime(r.Timestamp), r.DocProcessedPath, r.Hash}
}

func ChunkFromFields(f []string) (ChunkRecord, error) {
	if len(f) != len(ChunkedColumns) {
		return ChunkRecord{}, ErrFieldCount
	}
	var idx int
	if _, err := fmt.Sscanf(f[2], "%d", &idx); err != nil {
		return ChunkRecord{}, fmt.Errorf("%w: chunk_index %q: %v", ErrCorrupt, f[2], err)
	}
	return ChunkRecord{
		DocID: f[0], ChunkID: f[1], ChunkIndex: idx,
		Timestamp: parseTime(f[3]), DocProcessedPath: f[4], Hash: f[5],
	}, nil
}

// EmbeddingRecord is the metadata row paired positionally with one row of
// the vector array. File order here must match vector array row order.
type EmbeddingRecord struct {
	DocID            string
	DocProcessedPath string
	ChunkID          string
	ChunkHash        string
	Timestamp        time.Time
}

func (r EmbeddingRecord) Fields() []string {
	return []string{r.DocID, r.DocProcessedPath, r.ChunkID, r.ChunkHash, formatTime(r.Timestamp)}
}

func EmbeddingFromFields(f []string) (EmbeddingRecord, error) {
	if len(f) != len(EmbeddedColumns) {
		return EmbeddingRecord{}, ErrFieldCount
	}
	return EmbeddingRecord{
		DocID: f[0], DocProcessedPath: f[1], ChunkID: f[2], ChunkHash: f[3],
		Timestamp: parseTime(f[4]),
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{} // timestamps are informational, never a dedup key
	}
	return t
}
