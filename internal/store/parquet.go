package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"tradeday/internal/domain"
)

// Compile-time interface checks.
var _ ExceptionReader = (*ParquetStore)(nil)
var _ ExceptionWriter = (*ParquetStore)(nil)

// ParquetStore keeps an exception list in a single Parquet file.
type ParquetStore struct {
	Path string
}

// NewParquetStore creates a ParquetStore for the file at path.
func NewParquetStore(path string) *ParquetStore {
	return &ParquetStore{Path: path}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// ExceptionRow is the Parquet schema for one exception record.
type ExceptionRow struct {
	Date string `parquet:"date"` // YYYY/MM/DD
	Flag string `parquet:"flag"` // "0" closed, "1" open
}

// ReadExceptions reads every row of the file.
func (s *ParquetStore) ReadExceptions(_ context.Context) ([]domain.ExceptionRecord, error) {
	rows, err := readParquetFile[ExceptionRow](s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading parquet %s: %w", s.Path, err)
	}

	records := make([]domain.ExceptionRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.ExceptionRecord{Date: r.Date, Flag: r.Flag}
	}
	return records, nil
}

// WriteExceptions replaces the file with records.
func (s *ParquetStore) WriteExceptions(_ context.Context, records []domain.ExceptionRecord) error {
	rows := make([]ExceptionRow, len(records))
	for i, r := range records {
		rows[i] = ExceptionRow{Date: r.Date, Flag: r.Flag}
	}
	if err := writeParquetFile(s.Path, rows); err != nil {
		return fmt.Errorf("writing parquet %s: %w", s.Path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
