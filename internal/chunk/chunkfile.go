package chunk

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// FileChunk is the chunk content record written to chunks.csv and
// mirrored as one JSON object per line in chunks.jsonl.
type FileChunk struct {
	DocID      string `json:"doc_id"`
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	Tokens     int    `json:"tokens"`
	Content    string `json:"content"`
}

var chunkColumns = []string{"doc_id", "chunk_id", "chunk_index", "tokens", "content"}

const (
	csvName   = "chunks.csv"
	jsonlName = "chunks.jsonl"
)

// FileWriter appends chunk content records to both output files.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a writer rooted at dir, creating it if needed.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	return &FileWriter{dir: dir}, nil
}

// Append writes the chunks to chunks.csv (header written on first use)
// and chunks.jsonl.
func (w *FileWriter) Append(chunks []FileChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := w.appendCSV(chunks); err != nil {
		return err
	}
	return w.appendJSONL(chunks)
}

func (w *FileWriter) appendCSV(chunks []FileChunk) error {
	path := filepath.Join(w.dir, csvName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", csvName, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(chunkColumns); err != nil {
			return err
		}
	}
	for _, c := range chunks {
		row := []string{c.DocID, c.ChunkID, strconv.Itoa(c.ChunkIndex), strconv.Itoa(c.Tokens), c.Content}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *FileWriter) appendJSONL(chunks []FileChunk) error {
	path := filepath.Join(w.dir, jsonlName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", jsonlName, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}
	return nil
}

// ReadAll loads all chunk content records from dir, preferring the jsonl
// mirror and falling back to the csv file.
func ReadAll(dir string) ([]FileChunk, error) {
	jsonlPath := filepath.Join(dir, jsonlName)
	if _, err := os.Stat(jsonlPath); err == nil {
		return readJSONL(jsonlPath)
	}

	csvPath := filepath.Join(dir, csvName)
	if _, err := os.Stat(csvPath); err == nil {
		return readCSV(csvPath)
	}

	return nil, fmt.Errorf("no chunks found in %s", dir)
}

func readJSONL(path string) ([]FileChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []FileChunk
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var c FileChunk
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonlName, err)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func readCSV(path string) ([]FileChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(chunkColumns)

	if _, err := r.Read(); err != nil { // header
		return nil, fmt.Errorf("read %s header: %w", csvName, err)
	}

	var chunks []FileChunk
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", csvName, err)
		}
		idx, _ := strconv.Atoi(row[2])
		tokens, _ := strconv.Atoi(row[3])
		chunks = append(chunks, FileChunk{
			DocID: row[0], ChunkID: row[1], ChunkIndex: idx, Tokens: tokens, Content: row[4],
		})
	}
	return chunks, nil
}
