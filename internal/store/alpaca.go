package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradeday/internal/domain"
	"tradeday/internal/util"
)

// Compile-time interface check.
var _ ExceptionReader = (*AlpacaStore)(nil)

// AlpacaOptions configures the Alpaca-derived exception source.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	BaseURL         string
	Start           domain.Date
	End             domain.Date
	RateLimitPerMin int
}

// calendarClient is the subset of *alpaca.Client the store uses.
type calendarClient interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// AlpacaStore derives an exception list from the Alpaca session calendar:
// every weekday without a session becomes a forced closure and every weekend
// day with a session becomes a forced opening. It is read-only.
type AlpacaStore struct {
	client  calendarClient
	start   domain.Date
	end     domain.Date
	limiter *util.RateLimiter
	retry   util.RetryPolicy
	log     *slog.Logger
}

// NewAlpacaStore creates an AlpacaStore covering [opts.Start, opts.End].
func NewAlpacaStore(opts AlpacaOptions, log *slog.Logger) (*AlpacaStore, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, errors.New("alpaca store: api key and secret are required")
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})
	return newAlpacaStore(client, opts, log)
}

func newAlpacaStore(client calendarClient, opts AlpacaOptions, log *slog.Logger) (*AlpacaStore, error) {
	if opts.Start.IsZero() || opts.End.IsZero() {
		return nil, errors.New("alpaca store: start and end dates are required")
	}
	if opts.End.Before(opts.Start) {
		return nil, fmt.Errorf("alpaca store: end %s is before start %s", opts.End, opts.Start)
	}
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaStore{
		client:  client,
		start:   opts.Start,
		end:     opts.End,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin),
		retry:   util.DefaultRetryPolicy,
		log:     log,
	}, nil
}

// ReadExceptions fetches the session calendar one year at a time and derives
// the exception list for the configured range.
func (s *AlpacaStore) ReadExceptions(ctx context.Context) ([]domain.ExceptionRecord, error) {
	sessions := make(map[domain.Date]struct{})

	for year := s.start.Year; year <= s.end.Year; year++ {
		from := domain.NewDate(year, time.January, 1)
		if from.Before(s.start) {
			from = s.start
		}
		to := domain.NewDate(year, time.December, 31)
		if to.After(s.end) {
			to = s.end
		}

		days, err := s.fetch(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetching alpaca calendar %s..%s: %w", from, to, err)
		}
		for _, day := range days {
			d, err := domain.ParseDate(day.Date)
			if err != nil {
				s.log.Warn("skipping alpaca calendar day", "date", day.Date, "error", err)
				continue
			}
			sessions[d] = struct{}{}
		}
		s.log.Debug("alpaca calendar fetched", "year", year, "sessions", len(days))
	}

	return deriveExceptions(sessions, s.start, s.end), nil
}

func (s *AlpacaStore) fetch(ctx context.Context, from, to domain.Date) ([]alpaca.CalendarDay, error) {
	var days []alpaca.CalendarDay
	err := util.Retry(ctx, s.retry, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		days, err = s.client.GetCalendar(alpaca.GetCalendarRequest{
			Start: from.Time(),
			End:   to.Time(),
		})
		if err != nil && !retryableAlpacaError(err) {
			return util.Permanent(err)
		}
		return err
	})
	return days, err
}

// retryableAlpacaError treats client errors other than 429 as permanent.
func retryableAlpacaError(err error) bool {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// deriveExceptions compares session days against the weekday rule over
// [start, end] and emits only the disagreements.
func deriveExceptions(sessions map[domain.Date]struct{}, start, end domain.Date) []domain.ExceptionRecord {
	var records []domain.ExceptionRecord
	for d := start; !d.After(end); d = d.AddDays(1) {
		_, open := sessions[d]
		switch {
		case !open && !d.IsWeekend():
			records = append(records, domain.ExceptionRecord{Date: d.ExceptionString(), Flag: domain.FlagClosed})
		case open && d.IsWeekend():
			records = append(records, domain.ExceptionRecord{Date: d.ExceptionString(), Flag: domain.FlagOpen})
		}
	}
	return records
}
