package core

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"3:04:05PM",
}

// ParseOccurrence folds a calendar date and a free-text clock value into one
// sortable UTC timestamp. The clock may be 24h ("14:30") or carry an AM/PM
// tag ("2:30 PM"); an empty clock means midnight.
func ParseOccurrence(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, &ValidationError{Field: "date", Reason: "missing date", Err: ErrInvalidDate}
	}
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD", Err: ErrInvalidDate}
	}

	clock = strings.ToUpper(strings.TrimSpace(clock))
	if clock == "" {
		return day.UTC(), nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "time", Reason: "expected HH:MM or H:MM AM/PM", Err: ErrInvalidTime}
}
