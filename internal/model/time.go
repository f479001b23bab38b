package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the canonical textual form both condition stores emit for
// timestamps: SQLite datetime text, interpreted as UTC.
const TimeLayout = "2006-01-02 15:04:05"

// ParseStoreTime parses a timestamp in the canonical store form.
func ParseStoreTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("model: parse store time %q: %w", s, err)
	}
	return t, nil
}

// ParseTimestamp parses a user-supplied timestamp permissively: any run of
// non-digits separates fields, and omitted trailing fields default to the
// end of their range, so "2024-03" means 2024-03-31 23:59:59. This matches
// the request syntax the constants store has always accepted. At least the
// year must be present.
func ParseTimestamp(input string) (time.Time, error) {
	var digits []int
	for _, field := range strings.FieldsFunc(input, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		digits = append(digits, n)
	}
	if len(digits) == 0 {
		return time.Time{}, fmt.Errorf("model: timestamp %q has no digits", input)
	}

	get := func(i, def int) int {
		if i < len(digits) {
			return digits[i]
		}
		return def
	}
	year := digits[0]
	month := get(1, 12)
	day := get(2, 0)
	if day == 0 {
		day = daysIn(year, month)
	}
	hour := get(3, 23)
	minute := get(4, 59)
	second := get(5, 59)

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes out-of-range components instead of failing;
	// reject anything that moved.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, fmt.Errorf("model: invalid timestamp %q", input)
	}
	return t, nil
}

func daysIn(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
