// Package domain defines the core value types shared across tradeday: the
// calendar date used for all open/closed decisions and the raw exception
// records read from an exchange's exception list.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Market
// ---------------------------------------------------------------------------

// Market identifies the exchange a calendar belongs to.
type Market string

const (
	MarketTW Market = "tw"
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Valid reports whether m is a supported market.
func (m Market) Valid() bool {
	switch m {
	case MarketTW, MarketUS, MarketCN:
		return true
	}
	return false
}

// DefaultLocation returns the exchange time zone for a market. The fixed
// offset fallback covers hosts without a tz database.
func (m Market) DefaultLocation() *time.Location {
	var name string
	var offset int
	switch m {
	case MarketUS:
		name, offset = "America/New_York", -5*3600
	case MarketCN:
		name, offset = "Asia/Shanghai", 8*3600
	default:
		name, offset = "Asia/Taipei", 8*3600
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offset)
	}
	return loc
}

// ---------------------------------------------------------------------------
// Date
// ---------------------------------------------------------------------------

// Date is a calendar day with no time-of-day and no zone. It is comparable
// and used directly as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the Date for y-m-d, normalising out-of-range values the way
// time.Date does (e.g. Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight on d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of days from d to other, negative when other
// is earlier.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// IsWeekend reports whether d falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ExceptionString formats d the way exception lists store it (YYYY/MM/DD).
func (d Date) ExceptionString() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ---------------------------------------------------------------------------
// Parsing and normalisation
// ---------------------------------------------------------------------------

// ExceptionLayout is the only date layout allowed in exception lists. It also
// matches zero-padded values.
const ExceptionLayout = "2006/1/2"

// Accepted layouts for caller input.
var dateLayouts = []string{
	ExceptionLayout,
	"2006-01-02",
	"20060102",
}

// ParseExceptionDate parses an exception-list date, which must use
// ExceptionLayout.
func ParseExceptionDate(s string) (Date, error) {
	s = cleanDate(s)
	t, err := time.Parse(ExceptionLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing exception date %q: want YYYY/MM/DD", s)
	}
	return DateOf(t), nil
}

func cleanDate(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
}

// ParseDate parses s in any of the accepted layouts.
func ParseDate(s string) (Date, error) {
	s = cleanDate(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parsing date %q: unrecognised format", s)
}

// Normalize converts any supported date-like value into a Date. Instants are
// first converted into loc (when non-nil) and then truncated, so two instants
// on the same exchange-local day always produce the same Date.
func Normalize(v any, loc *time.Location) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	case *Date:
		if x == nil {
			return Date{}, fmt.Errorf("normalizing date: nil *Date")
		}
		return *x, nil
	case time.Time:
		if loc != nil {
			x = x.In(loc)
		}
		return DateOf(x), nil
	case *time.Time:
		if x == nil {
			return Date{}, fmt.Errorf("normalizing date: nil *time.Time")
		}
		return Normalize(*x, loc)
	case string:
		return ParseDate(x)
	default:
		return Date{}, fmt.Errorf("normalizing date: unsupported type %T", v)
	}
}

// ---------------------------------------------------------------------------
// Exception records
// ---------------------------------------------------------------------------

// Flag values carried by exception records.
const (
	FlagClosed = "0"
	FlagOpen   = "1"
)

// ExceptionRecord is one raw row of an exchange exception list. Date is
// expected in YYYY/MM/DD form; Flag is FlagClosed or FlagOpen. Rows with any
// other content are tolerated by readers and skipped by the calendar.
type ExceptionRecord struct {
	Date string
	Flag string
}
