package parquetio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const readBatch = 8192

// ReadBatches streams the rows of a Parquet file to fn in batches of up to
// 8192 rows. The slice passed to fn is reused between calls.
func ReadBatches[T any](filename string, fn func([]T) error) (int64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	buf := make([]T, readBatch)
	var total int64
	for {
		// Zeroed so optional fields of earlier batches are never reused.
		clear(buf)
		n, readErr := reader.Read(buf)
		if n > 0 {
			total += int64(n)
			if err := fn(buf[:n]); err != nil {
				return total, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return total, nil
			}
			return total, fmt.Errorf("read parquet: %w", readErr)
		}
	}
}

// ReadAll reads every row of a Parquet file.
func ReadAll[T any](filename string) ([]T, error) {
	var rows []T
	_, err := ReadBatches(filename, func(batch []T) error {
		rows = append(rows, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
