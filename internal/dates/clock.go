package dates

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// ParseClock reads an "HH:mm" time of day and returns minutes since midnight.
func ParseClock(text string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:mm", text)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", text)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", text)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:mm", wrapping modulo 24h.
func FormatClock(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes adds n minutes to an "HH:mm" clock, wrapping past midnight.
func AddMinutes(clock string, n int) (string, error) {
	base, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	return FormatClock(base + n), nil
}

// ClockBasic renders "HH:mm" as the RFC 5545 "HHmmss" time part.
// Empty or invalid input yields midnight.
func ClockBasic(clock string) string {
	minutes, err := ParseClock(clock)
	if err != nil {
		minutes = 0
	}
	return fmt.Sprintf("%02d%02d00", minutes/60, minutes%60)
}
