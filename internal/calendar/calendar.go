// Package calendar decides whether a date is a trading day for one exchange.
//
// A TradingCalendar combines an ExceptionCalendar (explicit closures and
// explicit forced openings) with the weekday rule: Monday to Friday are open,
// Saturday and Sunday are closed.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"tradeday/internal/domain"
	"tradeday/internal/util"
)

// DefaultMaxSearchDays bounds NearestOpen. Under the weekday rule an open day
// recurs every week, so only a corrupt exception list can exhaust it.
const DefaultMaxSearchDays = 366

// ErrSearchExhausted is returned by NearestOpen when no open day exists
// within the search bound.
var ErrSearchExhausted = errors.New("calendar: no open day within search bound")

// Direction selects which way NearestOpen steps from its start date.
type Direction int

const (
	// Backward steps towards earlier dates. It is the zero value and the
	// default direction.
	Backward Direction = iota
	// Forward steps towards later dates.
	Forward
)

// String returns "backward" or "forward".
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// ParseDirection accepts "backward"/"back"/"prev" and "forward"/"next". An
// empty string means Backward.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "backward", "back", "prev":
		return Backward, nil
	case "forward", "next":
		return Forward, nil
	default:
		return Backward, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) step() int {
	if d == Forward {
		return 1
	}
	return -1
}

// Option configures a TradingCalendar.
type Option func(*TradingCalendar)

// WithMaxSearchDays sets the NearestOpen bound. n <= 0 keeps the default.
func WithMaxSearchDays(n int) Option {
	return func(tc *TradingCalendar) {
		if n > 0 {
			tc.maxSearch = n
		}
	}
}

// WithLocation sets the exchange time zone used to truncate instants.
func WithLocation(loc *time.Location) Option {
	return func(tc *TradingCalendar) {
		if loc != nil {
			tc.loc = loc
		}
	}
}

// TradingCalendar answers open/closed questions for a specific market.
type TradingCalendar struct {
	market     domain.Market
	exceptions *ExceptionCalendar
	loc        *time.Location
	maxSearch  int
}

// NewTradingCalendar creates a TradingCalendar for the given market. A nil
// exceptions value means "no exceptions": the weekday rule alone applies.
func NewTradingCalendar(market domain.Market, exceptions *ExceptionCalendar, opts ...Option) *TradingCalendar {
	if exceptions == nil {
		exceptions, _ = NewExceptionCalendar(nil)
	}
	tc := &TradingCalendar{
		market:     market,
		exceptions: exceptions,
		maxSearch:  DefaultMaxSearchDays,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.loc == nil {
		tc.loc = market.DefaultLocation()
	}
	return tc
}

// Market returns the market the calendar belongs to.
func (tc *TradingCalendar) Market() domain.Market { return tc.market }

// Location returns the exchange time zone.
func (tc *TradingCalendar) Location() *time.Location { return tc.loc }

// Exceptions returns the underlying exception sets.
func (tc *TradingCalendar) Exceptions() *ExceptionCalendar { return tc.exceptions }

// IsOpen reports whether d is a trading day. Explicit closures win over
// explicit openings, which win over the weekday rule.
func (tc *TradingCalendar) IsOpen(d domain.Date) bool {
	if tc.exceptions.IsForcedClosed(d) {
		return false
	}
	if tc.exceptions.IsForcedOpen(d) {
		return true
	}
	return !d.IsWeekend()
}

// IsOpenAt reports whether the exchange-local day containing t is a trading
// day.
func (tc *TradingCalendar) IsOpenAt(t time.Time) bool {
	return tc.IsOpen(tc.DateOf(t))
}

// IsOpenNow reports whether today, according to clock, is a trading day.
func (tc *TradingCalendar) IsOpenNow(clock util.Clock) bool {
	return tc.IsOpenAt(clock.Now())
}

// DateOf truncates t to its exchange-local calendar day.
func (tc *TradingCalendar) DateOf(t time.Time) domain.Date {
	return domain.DateOf(t.In(tc.loc))
}

// NearestOpen returns the closest trading day to start in direction dir,
// including start itself. It fails with ErrSearchExhausted if no open day is
// found within the configured bound.
func (tc *TradingCalendar) NearestOpen(start domain.Date, dir Direction) (domain.Date, error) {
	step := dir.step()
	current := start
	for i := 0; !tc.IsOpen(current); i++ {
		if i >= tc.maxSearch {
			return domain.Date{}, fmt.Errorf("%w: %d days %s from %s",
				ErrSearchExhausted, tc.maxSearch, dir, start)
		}
		current = current.AddDays(step)
	}
	return current, nil
}

// NearestOpenNow is NearestOpen starting from today according to clock.
func (tc *TradingCalendar) NearestOpenNow(clock util.Clock, dir Direction) (domain.Date, error) {
	return tc.NearestOpen(tc.DateOf(clock.Now()), dir)
}

// OpenDaysBetween lists the trading days in [from, to], in ascending order.
// It returns nil if to is before from.
func (tc *TradingCalendar) OpenDaysBetween(from, to domain.Date) []domain.Date {
	var days []domain.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if tc.IsOpen(d) {
			days = append(days, d)
		}
	}
	return days
}
