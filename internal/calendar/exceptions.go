package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"tradeday/internal/domain"
)

// ErrLoad is returned when an exception list cannot be read as a whole.
// There is no degraded mode: a calendar without its exception list is never
// built.
var ErrLoad = errors.New("calendar: exception list load failed")

// ExceptionReader is the source of an exchange's exception list. It is
// satisfied by every store in tradeday/internal/store.
type ExceptionReader interface {
	ReadExceptions(ctx context.Context) ([]domain.ExceptionRecord, error)
}

// LoadStats summarises how a record set was turned into an
// ExceptionCalendar.
type LoadStats struct {
	Records   int `json:"records"`
	Closed    int `json:"closed"`
	Open      int `json:"open"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
}

// ExceptionCalendar holds the forced-closed and forced-open dates of one
// exchange. It is immutable after construction and safe for concurrent use.
type ExceptionCalendar struct {
	closed map[domain.Date]struct{}
	open   map[domain.Date]struct{}
	stats  LoadStats
}

// NewExceptionCalendar builds the exception sets from raw records.
//
// Records whose flag is neither domain.FlagClosed nor domain.FlagOpen, or
// whose date does not parse, are skipped: published exception lists carry
// header and comment rows, and those are not errors. A date listed under
// both flags is kept in both sets; IsOpen gives the closed entry precedence.
func NewExceptionCalendar(records []domain.ExceptionRecord) (*ExceptionCalendar, LoadStats) {
	ec := &ExceptionCalendar{
		closed: make(map[domain.Date]struct{}),
		open:   make(map[domain.Date]struct{}),
	}
	ec.stats.Records = len(records)

	for _, rec := range records {
		var set map[domain.Date]struct{}
		switch rec.Flag {
		case domain.FlagClosed:
			set = ec.closed
		case domain.FlagOpen:
			set = ec.open
		default:
			ec.stats.Skipped++
			continue
		}

		d, err := domain.ParseExceptionDate(rec.Date)
		if err != nil {
			ec.stats.Skipped++
			continue
		}
		set[d] = struct{}{}
	}

	for d := range ec.closed {
		if _, ok := ec.open[d]; ok {
			ec.stats.Conflicts++
		}
	}
	ec.stats.Closed = len(ec.closed)
	ec.stats.Open = len(ec.open)

	return ec, ec.stats
}

// LoadExceptions reads the full exception list from src exactly once and
// builds an ExceptionCalendar. Any read failure is fatal and wraps ErrLoad.
func LoadExceptions(ctx context.Context, src ExceptionReader, log *slog.Logger) (*ExceptionCalendar, error) {
	records, err := src.ReadExceptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	ec, stats := NewExceptionCalendar(records)
	if log != nil {
		log.Info("exception list loaded",
			"records", stats.Records,
			"closed", stats.Closed,
			"open", stats.Open,
			"skipped", stats.Skipped,
		)
		if stats.Conflicts > 0 {
			log.Warn("dates listed as both closed and open; treating them as closed",
				"conflicts", stats.Conflicts)
		}
	}
	return ec, nil
}

// IsForcedClosed reports whether d is explicitly listed as closed.
func (ec *ExceptionCalendar) IsForcedClosed(d domain.Date) bool {
	_, ok := ec.closed[d]
	return ok
}

// IsForcedOpen reports whether d is explicitly listed as open.
func (ec *ExceptionCalendar) IsForcedOpen(d domain.Date) bool {
	_, ok := ec.open[d]
	return ok
}

// Stats returns the load summary.
func (ec *ExceptionCalendar) Stats() LoadStats {
	return ec.stats
}

// Records returns the exception list in canonical form, sorted by date with
// closed entries before open ones on the same day.
func (ec *ExceptionCalendar) Records() []domain.ExceptionRecord {
	type entry struct {
		date domain.Date
		flag string
	}
	entries := make([]entry, 0, len(ec.closed)+len(ec.open))
	for d := range ec.closed {
		entries = append(entries, entry{d, domain.FlagClosed})
	}
	for d := range ec.open {
		entries = append(entries, entry{d, domain.FlagOpen})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].date != entries[j].date {
			return entries[i].date.Before(entries[j].date)
		}
		return entries[i].flag < entries[j].flag
	})

	out := make([]domain.ExceptionRecord, len(entries))
	for i, e := range entries {
		out[i] = domain.ExceptionRecord{Date: e.date.ExceptionString(), Flag: e.flag}
	}
	return out
}
