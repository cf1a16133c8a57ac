// Package httpapi provides the HTTP REST API of the calendar server: open
// checks, nearest-open searches, trading-day ranges and load statistics.
package httpapi

import (
	"tradeday/internal/calendar"
	"tradeday/internal/domain"
)

// OpenResponse answers GET /api/v1/open[/{date}]. The path form takes
// YYYY-MM-DD or YYYYMMDD; the slashed YYYY/MM/DD form goes in ?date= on
// /api/v1/open. Neither given means today.
type OpenResponse struct {
	Market  string      `json:"market"`
	Date    domain.Date `json:"date"`
	Weekday string      `json:"weekday"`
	Open    bool        `json:"open"`
	Reason  string      `json:"reason"` // "exception" or "weekday"
}

// NearestResponse answers GET /api/v1/nearest[/{date}]. Date forms follow
// OpenResponse.
type NearestResponse struct {
	Market    string      `json:"market"`
	Start     domain.Date `json:"start"`
	Direction string      `json:"direction"`
	Date      domain.Date `json:"date"`
	Steps     int         `json:"steps"`
}

// DaysResponse answers GET /api/v1/days.
type DaysResponse struct {
	Market string        `json:"market"`
	From   domain.Date   `json:"from"`
	To     domain.Date   `json:"to"`
	Days   []domain.Date `json:"days"`
}

// StatsResponse answers GET /api/v1/exceptions/stats.
type StatsResponse struct {
	Market string             `json:"market"`
	Stats  calendar.LoadStats `json:"stats"`
}

// maxRangeDays caps /api/v1/days so one request cannot walk decades.
const maxRangeDays = 3660
