package records

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Offsets are honored when present;
// everything else is read as a naive UTC wall clock.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Reader streams one table's CSV file and exposes typed cell accessors
// by column name. Cells that are present but unparseable become nil and are
// counted per column.
type Reader struct {
	file    *os.File
	csv     *csv.Reader
	schema  Schema
	rowNum  int64
	rows    int64
	colIdx  map[string]int // uppercase header → column index
	row     []string
	invalid map[string]int64
}

func NewReader(path string, schema Schema) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	bufReader := bufio.NewReaderSize(file, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	r := &Reader{
		file:    file,
		csv:     reader,
		schema:  schema,
		colIdx:  make(map[string]int),
		invalid: make(map[string]int64),
	}

	if err := r.readHeader(path); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader(path string) error {
	headers, err := r.csv.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", r.schema.Table, err)
	}
	r.rowNum++

	for i, h := range headers {
		key := strings.ToUpper(strings.TrimSpace(h))
		if _, dup := r.colIdx[key]; !dup {
			r.colIdx[key] = i
		}
	}
	for _, col := range r.schema.Required {
		if _, ok := r.colIdx[col]; !ok {
			return &MissingColumnError{Table: r.schema.Table, Column: col, Path: path}
		}
	}
	return nil
}

// Next advances to the next non-empty data row. It returns io.EOF when the
// file is exhausted.
func (r *Reader) Next() error {
	for {
		row, err := r.csv.Read()
		if err != nil {
			return err
		}
		r.rowNum++

		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		r.row = row
		r.rows++
		return nil
	}
}

// Has reports whether the header carries col.
func (r *Reader) Has(col string) bool {
	_, ok := r.colIdx[col]
	return ok
}

// Str returns the trimmed cell for col, or "" when the column is absent.
func (r *Reader) Str(col string) string {
	return valAt(r.row, r.colIdx, col)
}

// OptStr returns nil for an absent column or an empty cell.
func (r *Reader) OptStr(col string) *string {
	s := r.Str(col)
	if s == "" {
		return nil
	}
	return &s
}

// Float parses a numeric cell. Thousands separators and a leading "$" are
// tolerated.
func (r *Reader) Float(col string) *float64 {
	s := r.Str(col)
	if s == "" {
		return nil
	}
	f := parseFloat(s)
	if f == nil {
		r.invalid[col]++
	}
	return f
}

func (r *Reader) Time(col string) *time.Time {
	s := r.Str(col)
	if s == "" {
		return nil
	}
	t, ok := ParseTimestamp(s)
	if !ok {
		r.invalid[col]++
		return nil
	}
	return &t
}

// RowNum returns the current CSV row number (1-based, header included).
func (r *Reader) RowNum() int64 {
	return r.rowNum
}

// Stats returns the data row count and invalid-cell counts seen so far.
func (r *Reader) Stats() TableStats {
	inv := make(map[string]int64, len(r.invalid))
	for k, v := range r.invalid {
		inv[k] = v
	}
	return TableStats{Table: r.schema.Table, Rows: r.rows, Invalid: inv}
}

func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ParseTimestamp accepts RFC 3339 and the common ISO-8601 variants found in
// Synthea exports. Zoned values keep their offset so calendar fields read
// the local clock.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// All string cells are sanitized to valid UTF-8 since they end up in Parquet
// and JSON output.
func valAt(row []string, idx map[string]int, col string) string {
	if i, ok := idx[col]; ok && i < len(row) {
		return strings.ToValidUTF8(strings.TrimSpace(row[i]), "\uFFFD")
	}
	return ""
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
