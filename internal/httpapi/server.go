package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeday/internal/calendar"
	"tradeday/internal/domain"
	"tradeday/internal/metrics"
	"tradeday/internal/util"
)

const transport = "http"

// CalendarServer serves a TradingCalendar over HTTP.
type CalendarServer struct {
	cal   *calendar.TradingCalendar
	clock util.Clock
	log   *slog.Logger
}

// NewCalendarServer creates a new calendar HTTP server. clock answers
// requests that omit the date.
func NewCalendarServer(cal *calendar.TradingCalendar, clock util.Clock, log *slog.Logger) *CalendarServer {
	if log == nil {
		log = slog.Default()
	}
	return &CalendarServer{cal: cal, clock: clock, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *CalendarServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/open", s.handleOpenQuery)
	mux.HandleFunc("GET /api/v1/open/{date}", s.handleOpen)
	mux.HandleFunc("GET /api/v1/nearest", s.handleNearestQuery)
	mux.HandleFunc("GET /api/v1/nearest/{date}", s.handleNearest)
	mux.HandleFunc("GET /api/v1/days", s.handleDays)
	mux.HandleFunc("GET /api/v1/exceptions/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns an http.Handler with CORS middleware.
func (s *CalendarServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *CalendarServer) handleOpenQuery(w http.ResponseWriter, r *http.Request) {
	d, err := s.queryDate(r)
	if err != nil {
		metrics.ObserveQuery(transport, "is_open", metrics.ResultBadInput)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeOpen(w, d)
}

func (s *CalendarServer) handleOpen(w http.ResponseWriter, r *http.Request) {
	d, err := domain.ParseDate(r.PathValue("date"))
	if err != nil {
		metrics.ObserveQuery(transport, "is_open", metrics.ResultBadInput)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeOpen(w, d)
}

func (s *CalendarServer) writeOpen(w http.ResponseWriter, d domain.Date) {
	open := s.cal.IsOpen(d)

	reason := "weekday"
	ex := s.cal.Exceptions()
	if ex.IsForcedClosed(d) || ex.IsForcedOpen(d) {
		reason = "exception"
	}

	result := metrics.ResultClosed
	if open {
		result = metrics.ResultOpen
	}
	metrics.ObserveQuery(transport, "is_open", result)

	writeJSON(w, OpenResponse{
		Market:  string(s.cal.Market()),
		Date:    d,
		Weekday: d.Weekday().String(),
		Open:    open,
		Reason:  reason,
	})
}

func (s *CalendarServer) handleNearestQuery(w http.ResponseWriter, r *http.Request) {
	d, err := s.queryDate(r)
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeNearest(w, r, d)
}

// queryDate reads the optional ?date= parameter, which also takes the
// slashed YYYY/MM/DD form. Without it the date is today.
func (s *CalendarServer) queryDate(r *http.Request) (domain.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.cal.DateOf(s.clock.Now()), nil
	}
	return domain.ParseDate(raw)
}

func (s *CalendarServer) handleNearest(w http.ResponseWriter, r *http.Request) {
	d, err := domain.ParseDate(r.PathValue("date"))
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeNearest(w, r, d)
}

func (s *CalendarServer) writeNearest(w http.ResponseWriter, r *http.Request, start domain.Date) {
	dir, err := calendar.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := s.cal.NearestOpen(start, dir)
	if errors.Is(err, calendar.ErrSearchExhausted) {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultExhausted)
		s.log.Warn("nearest-open search exhausted", "start", start, "direction", dir)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	steps := start.DaysUntil(found)
	if steps < 0 {
		steps = -steps
	}
	metrics.ObserveQuery(transport, "nearest_open", metrics.ResultFound)
	metrics.ObserveSearch(dir.String(), steps)

	writeJSON(w, NearestResponse{
		Market:    string(s.cal.Market()),
		Start:     start,
		Direction: dir.String(),
		Date:      found,
		Steps:     steps,
	})
}

func (s *CalendarServer) handleDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := domain.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := domain.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}
	if from.DaysUntil(to) > maxRangeDays {
		writeError(w, http.StatusBadRequest, "range too long")
		return
	}

	days := s.cal.OpenDaysBetween(from, to)
	if days == nil {
		days = []domain.Date{}
	}
	metrics.ObserveQuery(transport, "open_days", metrics.ResultFound)
	writeJSON(w, DaysResponse{
		Market: string(s.cal.Market()),
		From:   from,
		To:     to,
		Days:   days,
	})
}

func (s *CalendarServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StatsResponse{
		Market: string(s.cal.Market()),
		Stats:  s.cal.Exceptions().Stats(),
	})
}
