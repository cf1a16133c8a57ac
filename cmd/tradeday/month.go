package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tradeday/internal/calendar"
	"tradeday/internal/domain"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	openStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	closedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	forcedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	todayStyle     = lipgloss.NewStyle().Background(lipgloss.Color("236"))
)

func runMonth(ctx context.Context, args []string) error {
	cal, err := loadCalendar(ctx)
	if err != nil {
		return err
	}

	today := cal.DateOf(time.Now())
	year, month := today.Year, today.Month
	if len(args) > 0 {
		t, err := time.Parse("2006-01", args[0])
		if err != nil {
			return errors.New("usage: tradeday month [YYYY-MM]")
		}
		year, month = t.Year(), t.Month()
	}

	fmt.Print(renderMonth(cal, year, month, today))
	return nil
}

// renderMonth draws a Monday-first month grid. Exception days carry a marker:
// "+" for forced-open and "-" for forced-closed.
func renderMonth(cal *calendar.TradingCalendar, year int, month time.Month, today domain.Date) string {
	var b strings.Builder

	first := domain.NewDate(year, month, 1)
	last := first.AddDays(32)
	last = domain.NewDate(last.Year, last.Month, 1).AddDays(-1)

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %d (%s)", month, year, cal.Market())))
	b.WriteString("\n")
	b.WriteString(colHeaderStyle.Render(" Mo  Tu  We  Th  Fr  Sa  Su"))
	b.WriteString("\n")

	// Monday = column 0.
	col := (int(first.Weekday()) + 6) % 7
	b.WriteString(strings.Repeat("    ", col))

	ex := cal.Exceptions()
	open := 0
	for d := first; !d.After(last); d = d.AddDays(1) {
		mark := " "
		style := closedStyle
		switch {
		case ex.IsForcedClosed(d):
			mark, style = "-", forcedStyle
		case ex.IsForcedOpen(d):
			mark, style = "+", forcedStyle
		}
		if cal.IsOpen(d) {
			open++
			if mark == " " {
				style = openStyle
			}
		}
		if d == today {
			style = style.Inherit(todayStyle)
		}

		b.WriteString(style.Render(fmt.Sprintf("%3d%s", d.Day, mark)))
		col++
		if col == 7 {
			b.WriteString("\n")
			col = 0
		}
	}
	if col != 0 {
		b.WriteString("\n")
	}
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("%d trading days", open)))
	b.WriteString("\n")
	return b.String()
}
