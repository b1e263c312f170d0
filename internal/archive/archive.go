// Package archive writes and reads session traces as zstd-compressed JSONL.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Ext is the suffix of every trace archive.
const Ext = ".jsonl.zst"

// Row is one observed reading in a trace.
type Row struct {
	Step         int            `json:"step"`
	Module       string         `json:"module"`
	Tick         int            `json:"tick"`
	Value        float64        `json:"value"`
	Reading      float64        `json:"reading"`
	Offset       float64        `json:"offset,omitempty"`
	Damping      float64        `json:"damping,omitempty"`
	Met          bool           `json:"met"`
	Transitioned bool           `json:"transitioned,omitempty"`
	Complete     bool           `json:"complete"`
	Params       map[string]any `json:"params,omitempty"`
}

// #region writer
// Writer streams rows into a zstd-compressed JSONL sink.
type Writer struct {
	file    *os.File
	encoder *zstd.Encoder
	json    *json.Encoder
	rows    int
}

// Create opens archiveDir/{sessionID}.jsonl.zst for writing.
func Create(sessionID, archiveDir string) (*Writer, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("archive: empty session id")
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return CreateFile(ArchivePath(sessionID, archiveDir))
}

// CreateFile opens an explicit archive path for writing.
func CreateFile(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter compresses into dst. Close does not close dst.
func NewWriter(dst io.Writer) (*Writer, error) {
	encoder, err := zstd.NewWriter(dst)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Writer{encoder: encoder, json: json.NewEncoder(encoder)}, nil
}

// Write appends one row.
func (w *Writer) Write(r Row) error {
	if err := w.json.Encode(r); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.rows++
	return nil
}

// Rows reports how many rows were written.
func (w *Writer) Rows() int { return w.rows }

// Close finalizes the compressed stream and the file, if any.
func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return fmt.Errorf("finalize compression: %w", err)
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
	}
	return nil
}

// #endregion writer

// #region reader
// ReadFile decodes every row of an archive.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes every row from a compressed stream.
func Read(src io.Reader) ([]Row, error) {
	decoder, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var rows []Row
	sc := bufio.NewScanner(decoder)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		var r Row
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return rows, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, r)
	}
	if err := sc.Err(); err != nil {
		return rows, fmt.Errorf("decompress: %w", err)
	}
	return rows, nil
}

// #endregion reader

// IsArchived returns true if an archive file exists for the given session ID.
func IsArchived(sessionID, archiveDir string) bool {
	_, err := os.Stat(ArchivePath(sessionID, archiveDir))
	return err == nil
}

// ArchivePath returns the deterministic archive path for a session ID.
func ArchivePath(sessionID, archiveDir string) string {
	return filepath.Join(archiveDir, sessionID+Ext)
}
