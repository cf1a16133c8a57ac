package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradeday/internal/calendar"
	"tradeday/internal/domain"
	"tradeday/internal/util"
)

func newTestServer(t *testing.T, opts ...calendar.Option) *httptest.Server {
	t.Helper()
	ec, _ := calendar.NewExceptionCalendar([]domain.ExceptionRecord{
		{Date: "2014/01/01", Flag: "0"},
		{Date: "2014/02/08", Flag: "1"},
	})
	taipei := time.FixedZone("CST", 8*3600)
	opts = append(opts, calendar.WithLocation(taipei))
	cal := calendar.NewTradingCalendar(domain.MarketTW, ec, opts...)

	// Sunday 2014-02-16, 10:00 Taipei.
	clock := util.FixedClock(time.Date(2014, 2, 16, 10, 0, 0, 0, taipei))

	srv := httptest.NewServer(NewCalendarServer(cal, clock, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
}

func TestHandleOpen(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		date   string
		open   bool
		reason string
	}{
		{"2014-01-01", false, "exception"},
		{"2014-01-02", true, "weekday"},
		{"20140208", true, "exception"},
		{"2014-02-09", false, "weekday"},
	}
	for _, tc := range tests {
		var got OpenResponse
		getJSON(t, srv.URL+"/api/v1/open/"+tc.date, http.StatusOK, &got)
		if got.Open != tc.open || got.Reason != tc.reason {
			t.Errorf("open/%s = %+v, want open=%v reason=%s", tc.date, got, tc.open, tc.reason)
		}
		if got.Market != "tw" {
			t.Errorf("open/%s market = %q", tc.date, got.Market)
		}
	}

	getJSON(t, srv.URL+"/api/v1/open/garbage", http.StatusBadRequest, nil)
}

func TestHandleOpenToday(t *testing.T) {
	srv := newTestServer(t)

	var got OpenResponse
	getJSON(t, srv.URL+"/api/v1/open", http.StatusOK, &got)
	if got.Date != domain.NewDate(2014, time.February, 16) {
		t.Errorf("today = %s, want 2014-02-16", got.Date)
	}
	if got.Open || got.Weekday != "Sunday" {
		t.Errorf("today = %+v, want a closed Sunday", got)
	}
}

func TestHandleNearest(t *testing.T) {
	srv := newTestServer(t)

	var got NearestResponse
	getJSON(t, srv.URL+"/api/v1/nearest/2014-02-15", http.StatusOK, &got)
	if got.Date != domain.NewDate(2014, time.February, 14) || got.Direction != "backward" || got.Steps != 1 {
		t.Errorf("nearest backward = %+v, want 2014-02-14 after 1 step", got)
	}

	getJSON(t, srv.URL+"/api/v1/nearest/2014-02-15?direction=forward", http.StatusOK, &got)
	if got.Date != domain.NewDate(2014, time.February, 17) || got.Steps != 2 {
		t.Errorf("nearest forward = %+v, want 2014-02-17 after 2 steps", got)
	}

	getJSON(t, srv.URL+"/api/v1/nearest?direction=next", http.StatusOK, &got)
	if got.Start != domain.NewDate(2014, time.February, 16) || got.Date != domain.NewDate(2014, time.February, 17) {
		t.Errorf("nearest today = %+v", got)
	}

	getJSON(t, srv.URL+"/api/v1/nearest/2014-02-15?direction=up", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/nearest/xx", http.StatusBadRequest, nil)
}

func TestHandleNearestExhausted(t *testing.T) {
	srv := newTestServer(t, calendar.WithMaxSearchDays(1))

	// 2014-01-01 is closed and 2013-12-31 is open; backward succeeds in one
	// step. Saturday 2014-02-15 needs two steps forward.
	getJSON(t, srv.URL+"/api/v1/nearest/2014-01-01", http.StatusOK, nil)
	getJSON(t, srv.URL+"/api/v1/nearest/2014-02-15?direction=forward", http.StatusUnprocessableEntity, nil)
}

func TestHandleDays(t *testing.T) {
	srv := newTestServer(t)

	var got DaysResponse
	getJSON(t, srv.URL+"/api/v1/days?from=2014-02-06&to=2014-02-10", http.StatusOK, &got)
	want := []domain.Date{
		domain.NewDate(2014, time.February, 6),
		domain.NewDate(2014, time.February, 7),
		domain.NewDate(2014, time.February, 8),
		domain.NewDate(2014, time.February, 10),
	}
	if len(got.Days) != len(want) {
		t.Fatalf("days = %v, want %v", got.Days, want)
	}
	for i := range want {
		if got.Days[i] != want[i] {
			t.Errorf("days[%d] = %s, want %s", i, got.Days[i], want[i])
		}
	}

	getJSON(t, srv.URL+"/api/v1/days?from=2014-02-10&to=2014-02-06", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/days?from=2000-01-01&to=2030-01-01", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/days?to=2014-02-06", http.StatusBadRequest, nil)
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer(t)

	var got StatsResponse
	getJSON(t, srv.URL+"/api/v1/exceptions/stats", http.StatusOK, &got)
	if got.Stats.Closed != 1 || got.Stats.Open != 1 {
		t.Errorf("stats = %+v, want 1 closed and 1 open", got.Stats)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/open", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	getJSON(t, srv.URL+"/healthz", http.StatusOK, nil)
	getJSON(t, srv.URL+"/metrics", http.StatusOK, nil)
}

func TestHandleDateQuery(t *testing.T) {
	srv := newTestServer(t)

	var open OpenResponse
	getJSON(t, srv.URL+"/api/v1/open?date=2014/01/01", http.StatusOK, &open)
	if open.Date != domain.NewDate(2014, time.January, 1) || open.Open {
		t.Errorf("open?date=2014/01/01 = %+v, want a closed 2014-01-01", open)
	}

	var nearest NearestResponse
	getJSON(t, srv.URL+"/api/v1/nearest?date=2014/02/15&direction=forward", http.StatusOK, &nearest)
	if nearest.Start != domain.NewDate(2014, time.February, 15) || nearest.Date != domain.NewDate(2014, time.February, 17) {
		t.Errorf("nearest?date=2014/02/15 = %+v, want 2014-02-17", nearest)
	}

	getJSON(t, srv.URL+"/api/v1/open?date=garbage", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/v1/nearest?date=garbage", http.StatusBadRequest, nil)
}
