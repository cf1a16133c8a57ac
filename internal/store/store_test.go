package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradeday/internal/domain"
)

var sampleRecords = []domain.ExceptionRecord{
	{Date: "2014/01/01", Flag: "0"},
	{Date: "2014/01/30", Flag: "0"},
	{Date: "2014/02/08", Flag: "1"},
	{Date: "2014/12/25", Flag: "x"},
}

func assertRecords(t *testing.T, got, want []domain.ExceptionRecord) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCSVStoreReadFixture(t *testing.T) {
	s := NewCSVStore(filepath.Join("testdata", "opendate.csv"))

	got, err := s.ReadExceptions(context.Background())
	if err != nil {
		t.Fatalf("ReadExceptions: %v", err)
	}
	if len(got) != 16 {
		t.Fatalf("ReadExceptions returned %d rows, want 16", len(got))
	}
	if got[0].Flag != "狀態" {
		t.Errorf("header row should be returned unchanged, got %+v", got[0])
	}
	if got[1] != (domain.ExceptionRecord{Date: "2014/01/01", Flag: "0"}) {
		t.Errorf("first data row = %+v", got[1])
	}
	if got[8] != (domain.ExceptionRecord{Date: "2014/02/08", Flag: "1"}) {
		t.Errorf("forced-open row = %+v", got[8])
	}
	// Unknown flags are passed through; the calendar decides to skip them.
	if got[15] != (domain.ExceptionRecord{Date: "2014/12/25", Flag: "x"}) {
		t.Errorf("last row = %+v, want the unknown-flag row unchanged", got[15])
	}
}

func TestCSVStoreTolerantRows(t *testing.T) {
	input := strings.Join([]string{
		"# comment line",
		"2014/01/01, 0",
		"2014/01/02",
		"2014/01/03,0,extra",
		`2014/01/04,1"`,
		"",
		"2014/01/06,1",
	}, "\n")

	got, err := readCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readCSV: %v", err)
	}

	assertRecords(t, got, []domain.ExceptionRecord{
		{Date: "2014/01/01", Flag: "0"},
		{Date: "2014/01/02"},
		{Date: "2014/01/03", Flag: "0"},
		{Date: "2014/01/04", Flag: `1"`},
		{Date: "2014/01/06", Flag: "1"},
	})
}

func TestCSVStoreMissingFile(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := s.ReadExceptions(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadExceptions error = %v, want os.ErrNotExist", err)
	}
}

func TestCSVStoreWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "opendate.csv")
	s := NewCSVStore(path)
	ctx := context.Background()

	if err := s.WriteExceptions(ctx, sampleRecords); err != nil {
		t.Fatalf("WriteExceptions: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if !strings.HasPrefix(string(data), "2014/01/01,0\n") {
		t.Errorf("unexpected file content:\n%s", data)
	}

	got, err := s.ReadExceptions(ctx)
	if err != nil {
		t.Fatalf("ReadExceptions: %v", err)
	}
	assertRecords(t, got, sampleRecords)
}

func TestParquetStoreWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tw", "exceptions.parquet")
	s := NewParquetStore(path)
	ctx := context.Background()

	if err := s.WriteExceptions(ctx, sampleRecords); err != nil {
		t.Fatalf("WriteExceptions: %v", err)
	}
	got, err := s.ReadExceptions(ctx)
	if err != nil {
		t.Fatalf("ReadExceptions: %v", err)
	}
	assertRecords(t, got, sampleRecords)
}

func TestParquetStoreMissingFile(t *testing.T) {
	s := NewParquetStore(filepath.Join(t.TempDir(), "missing.parquet"))
	if _, err := s.ReadExceptions(context.Background()); err == nil {
		t.Error("ReadExceptions on a missing file should fail")
	}
}

func TestSQLiteStoreWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeday.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	empty, err := s.ReadExceptions(ctx)
	if err != nil {
		t.Fatalf("ReadExceptions on new db: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("new db returned %d rows, want 0", len(empty))
	}

	if err := s.WriteExceptions(ctx, sampleRecords); err != nil {
		t.Fatalf("WriteExceptions: %v", err)
	}
	// A second write replaces, not appends.
	if err := s.WriteExceptions(ctx, sampleRecords); err != nil {
		t.Fatalf("second WriteExceptions: %v", err)
	}

	got, err := s.ReadExceptions(ctx)
	if err != nil {
		t.Fatalf("ReadExceptions: %v", err)
	}
	assertRecords(t, got, sampleRecords)
}

func TestXLSXStoreWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opendate.xlsx")
	s := NewXLSXStore(path, "")
	ctx := context.Background()

	if err := s.WriteExceptions(ctx, sampleRecords); err != nil {
		t.Fatalf("WriteExceptions: %v", err)
	}
	got, err := s.ReadExceptions(ctx)
	if err != nil {
		t.Fatalf("ReadExceptions: %v", err)
	}

	want := append([]domain.ExceptionRecord{{Date: "date", Flag: "flag"}}, sampleRecords...)
	assertRecords(t, got, want)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{KindCSV, KindParquet, KindSQLite, KindXLSX} {
		h, err := Open(kind, filepath.Join(dir, "exceptions."+kind), Options{})
		if err != nil {
			t.Fatalf("Open(%s): %v", kind, err)
		}
		if h.Reader == nil || h.Writer == nil {
			t.Errorf("Open(%s) should return a readable and writable handle", kind)
		}
		if err := h.Close(); err != nil {
			t.Errorf("Close(%s): %v", kind, err)
		}
	}

	if _, err := Open("ftp", "x", Options{}); err == nil {
		t.Error("Open with unknown kind should fail")
	}
	if _, err := Open(KindAlpaca, "", Options{}); err == nil {
		t.Error("Open alpaca without credentials should fail")
	}
}

type fakeCalendarClient struct {
	days  []alpaca.CalendarDay
	calls []alpaca.GetCalendarRequest
	err   error
}

func (f *fakeCalendarClient) GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	var out []alpaca.CalendarDay
	for _, d := range f.days {
		day, _ := domain.ParseDate(d.Date)
		if !day.Before(domain.DateOf(req.Start)) && !day.After(domain.DateOf(req.End)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestAlpacaStoreDerivesExceptions(t *testing.T) {
	// Week of 2013-12-30: Jan 1 closed, Saturday Jan 4 open.
	client := &fakeCalendarClient{days: []alpaca.CalendarDay{
		{Date: "2013-12-30"},
		{Date: "2013-12-31"},
		{Date: "2014-01-02"},
		{Date: "2014-01-03"},
		{Date: "2014-01-04"},
	}}
	opts := AlpacaOptions{
		Start: domain.NewDate(2013, time.December, 30),
		End:   domain.NewDate(2014, time.January, 5),
	}
	s, err := newAlpacaStore(client, opts, nil)
	if err != nil {
		t.Fatalf("newAlpacaStore: %v", err)
	}

	got, err := s.ReadExceptions(context.Background())
	if err != nil {
		t.Fatalf("ReadExceptions: %v", err)
	}
	assertRecords(t, got, []domain.ExceptionRecord{
		{Date: "2014/01/01", Flag: "0"},
		{Date: "2014/01/04", Flag: "1"},
	})

	if len(client.calls) != 2 {
		t.Fatalf("GetCalendar called %d times, want one call per year", len(client.calls))
	}
	if got := domain.DateOf(client.calls[0].End); got != domain.NewDate(2013, time.December, 31) {
		t.Errorf("first chunk ends %s, want 2013-12-31", got)
	}
	if got := domain.DateOf(client.calls[1].Start); got != domain.NewDate(2014, time.January, 1) {
		t.Errorf("second chunk starts %s, want 2014-01-01", got)
	}
}

func TestAlpacaStorePermanentError(t *testing.T) {
	client := &fakeCalendarClient{err: &alpaca.APIError{StatusCode: 403, Message: "forbidden"}}
	s, err := newAlpacaStore(client, AlpacaOptions{
		Start: domain.NewDate(2014, time.January, 1),
		End:   domain.NewDate(2014, time.January, 31),
	}, nil)
	if err != nil {
		t.Fatalf("newAlpacaStore: %v", err)
	}

	if _, err := s.ReadExceptions(context.Background()); err == nil {
		t.Fatal("ReadExceptions should fail")
	}
	if len(client.calls) != 1 {
		t.Errorf("GetCalendar called %d times, a 403 must not be retried", len(client.calls))
	}
}

func TestNewAlpacaStoreValidation(t *testing.T) {
	client := &fakeCalendarClient{}
	if _, err := newAlpacaStore(client, AlpacaOptions{}, nil); err == nil {
		t.Error("missing range should fail")
	}
	_, err := newAlpacaStore(client, AlpacaOptions{
		Start: domain.NewDate(2014, time.February, 1),
		End:   domain.NewDate(2014, time.January, 1),
	}, nil)
	if err == nil {
		t.Error("reversed range should fail")
	}
}
