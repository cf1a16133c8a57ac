// Package store reads and writes exchange exception lists in the formats
// tradeday supports: CSV (the format exchanges publish), Parquet, SQLite,
// XLSX, and a read-only source derived from the Alpaca session calendar.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"tradeday/internal/domain"
)

// ExceptionReader reads a full exception list.
type ExceptionReader interface {
	// ReadExceptions returns every record of the list in source order.
	// Individual malformed rows are returned as-is; only a failure to read
	// the list as a whole is an error.
	ReadExceptions(ctx context.Context) ([]domain.ExceptionRecord, error)
}

// ExceptionWriter persists a full exception list, replacing previous content.
type ExceptionWriter interface {
	WriteExceptions(ctx context.Context, records []domain.ExceptionRecord) error
}

// Store kinds accepted by Open.
const (
	KindCSV     = "csv"
	KindParquet = "parquet"
	KindSQLite  = "sqlite"
	KindXLSX    = "xlsx"
	KindAlpaca  = "alpaca"
)

// Kinds lists every supported store kind.
var Kinds = []string{KindCSV, KindParquet, KindSQLite, KindXLSX, KindAlpaca}

// Options carries the settings some store kinds need beyond a path.
type Options struct {
	Alpaca AlpacaOptions
	Log    *slog.Logger
}

// Handle is an opened store. Writer is nil for read-only kinds. Close must be
// called when done.
type Handle struct {
	Kind   string
	Reader ExceptionReader
	Writer ExceptionWriter
	closer io.Closer
}

// Close releases resources held by the store.
func (h *Handle) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Open opens the store of the given kind at path.
func Open(kind, path string, opts Options) (*Handle, error) {
	switch kind {
	case KindCSV:
		s := NewCSVStore(path)
		return &Handle{Kind: kind, Reader: s, Writer: s}, nil
	case KindParquet:
		s := NewParquetStore(path)
		return &Handle{Kind: kind, Reader: s, Writer: s}, nil
	case KindSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store %s: %w", path, err)
		}
		return &Handle{Kind: kind, Reader: s, Writer: s, closer: s}, nil
	case KindXLSX:
		s := NewXLSXStore(path, "")
		return &Handle{Kind: kind, Reader: s, Writer: s}, nil
	case KindAlpaca:
		s, err := NewAlpacaStore(opts.Alpaca, opts.Log)
		if err != nil {
			return nil, err
		}
		return &Handle{Kind: kind, Reader: s}, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
