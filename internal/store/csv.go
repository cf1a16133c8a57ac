package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tradeday/internal/domain"
)

// Compile-time interface checks.
var _ ExceptionReader = (*CSVStore)(nil)
var _ ExceptionWriter = (*CSVStore)(nil)

// CSVStore reads and writes the exchange's published format: one
// "YYYY/MM/DD,flag" row per line, no header required.
type CSVStore struct {
	Path string
}

// NewCSVStore creates a CSVStore for the file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{Path: path}
}

// ReadExceptions reads every row of the file. Rows with fewer than two
// fields are returned with an empty flag so the calendar skips them.
func (s *CSVStore) ReadExceptions(_ context.Context) ([]domain.ExceptionRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([]domain.ExceptionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.LazyQuotes = true

	var records []domain.ExceptionRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// One unparsable line; the calendar skips the empty record.
				records = append(records, domain.ExceptionRecord{})
				continue
			}
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		rec := domain.ExceptionRecord{Date: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			rec.Flag = strings.TrimSpace(row[1])
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteExceptions replaces the file with records.
func (s *CSVStore) WriteExceptions(_ context.Context, records []domain.ExceptionRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}

	tmp := s.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	for _, rec := range records {
		if err := w.Write([]string{rec.Date, rec.Flag}); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flushing csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path)
}
