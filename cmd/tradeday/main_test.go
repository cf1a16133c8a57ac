package main

import (
	"testing"
	"time"

	"tradeday/internal/calendar"
	"tradeday/internal/domain"
)

func TestParseNearestArgs(t *testing.T) {
	feb8 := domain.NewDate(2014, time.February, 8)

	tests := []struct {
		args []string
		dir  calendar.Direction
	}{
		{[]string{"2014/02/08"}, calendar.Backward},
		{[]string{"-forward", "2014/02/08"}, calendar.Forward},
		{[]string{"-forward=false", "2014-02-08"}, calendar.Backward},
	}
	for _, tc := range tests {
		d, dir, err := parseNearestArgs(tc.args)
		if err != nil {
			t.Errorf("parseNearestArgs(%q): %v", tc.args, err)
			continue
		}
		if d != feb8 || dir != tc.dir {
			t.Errorf("parseNearestArgs(%q) = %s %s, want %s %s", tc.args, d, dir, feb8, tc.dir)
		}
	}

	for _, bad := range [][]string{
		{},
		{"2014/02/08", "-forward"},
		{"2014/02/08", "2014/02/09"},
		{"-sideways", "2014/02/08"},
		{"garbage"},
	} {
		if _, _, err := parseNearestArgs(bad); err == nil {
			t.Errorf("parseNearestArgs(%q) should fail", bad)
		}
	}
}
