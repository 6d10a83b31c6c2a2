// Package parquetio writes the enriched patient and encounter tables to
// Parquet and reads them back for the warehouse load.
package parquetio

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// Writer writes rows of type T to a Parquet file.
//
// Files are zstd compressed with 8KB pages and page-level statistics, so
// query engines can skip pages on the id and date columns.
type Writer[T any] struct {
	file   *os.File
	writer *parquet.GenericWriter[T]
	count  int
}

func NewWriter[T any](filename string) (*Writer[T], error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[T](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(64*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("hospitalstats", "1.0", ""),
	)

	return &Writer[T]{
		file:   file,
		writer: writer,
	}, nil
}

// Write writes a batch of rows.
func (w *Writer[T]) Write(rows []T) (int, error) {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	return n, nil
}

// Close flushes the final row group and closes the file.
func (w *Writer[T]) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the total number of rows written.
func (w *Writer[T]) Count() int {
	return w.count
}

// WriteAll writes rows to filename in batches of batchSize and returns the
// number of rows written.
func WriteAll[T any](filename string, rows []T, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = len(rows)
	}
	w, err := NewWriter[T](filename)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		if _, err := w.Write(rows[start:end]); err != nil {
			w.Close()
			return w.Count(), err
		}
	}
	if err := w.Close(); err != nil {
		return w.Count(), err
	}
	return w.Count(), nil
}
