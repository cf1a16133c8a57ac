package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"tradeday/internal/domain"
)

// Compile-time interface checks.
var _ ExceptionReader = (*XLSXStore)(nil)
var _ ExceptionWriter = (*XLSXStore)(nil)

const defaultXLSXSheet = "exceptions"

// XLSXStore reads and writes an exception list as a spreadsheet: column A
// holds the date, column B the flag. Written files start with a header row,
// which the calendar skips like any other non-data row.
type XLSXStore struct {
	Path  string
	Sheet string // empty reads the first sheet and writes "exceptions"
}

// NewXLSXStore creates an XLSXStore for the workbook at path.
func NewXLSXStore(path, sheet string) *XLSXStore {
	return &XLSXStore{Path: path, Sheet: sheet}
}

// ReadExceptions returns one record per spreadsheet row.
func (s *XLSXStore) ReadExceptions(_ context.Context) ([]domain.ExceptionRecord, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", s.Path, err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	records := make([]domain.ExceptionRecord, 0, len(rows))
	for _, row := range rows {
		var rec domain.ExceptionRecord
		if len(row) > 0 {
			rec.Date = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			rec.Flag = strings.TrimSpace(row[1])
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteExceptions replaces the workbook with a header row plus records.
func (s *XLSXStore) WriteExceptions(_ context.Context, records []domain.ExceptionRecord) error {
	sheet := s.Sheet
	if sheet == "" {
		sheet = defaultXLSXSheet
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	_ = f.SetCellStr(sheet, "A1", "date")
	_ = f.SetCellStr(sheet, "B1", "flag")
	for i, rec := range records {
		row := i + 2
		// Dates stay text so spreadsheet apps do not reformat them.
		if err := f.SetCellStr(sheet, fmt.Sprintf("A%d", row), rec.Date); err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, fmt.Sprintf("B%d", row), rec.Flag); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(s.Path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", s.Path, err)
	}
	return nil
}
