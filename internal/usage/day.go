package usage

import (
	"strings"
	"time"

	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
)

const dayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD calendar date in loc. An empty value yields
// the zero time, which History treats as today.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(dayLayout, value, loc)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD").
			WithDetails(map[string]string{"date": "must be YYYY-MM-DD"})
	}
	return day, nil
}

// dayBounds returns the UTC instants [start, end) covering the calendar day
// of t in loc. Using the next midnight as the bound keeps DST days correct.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}
