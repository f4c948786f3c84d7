// Package dates normalizes the two text date encodings accepted by tripcal
// (DD/MM/YYYY and YYYY-MM-DD) into a single calendar-day value.
package dates

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day with no time-of-day or zone.
// The zero value means "no date" and never matches a date query.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// isoLayouts are tried in order when the text has no slash.
var isoLayouts = []string{
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"20060102",
}

// New builds a Date, normalizing out-of-range fields the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current local calendar day.
func Today() Date {
	return FromTime(time.Now())
}

// Parse reads a date in DD/MM/YYYY when the text contains a slash, and as
// YYYY-MM-DD (or a few ISO variants) otherwise. On failure it returns the
// zero Date and an error.
func Parse(text string) (Date, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}

	if strings.Contains(s, "/") {
		return parseSlashed(s)
	}

	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err != nil {
			continue
		}
		if layout == time.RFC3339 {
			t = t.In(time.Local)
		}
		return FromTime(t), nil
	}

	return Date{}, fmt.Errorf("unrecognized date %q", text)
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(text string) Date {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return d
}

func parseSlashed(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date %q: expected DD/MM/YYYY", s)
	}

	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, fmt.Errorf("invalid date %q: non-numeric field", s)
	}

	d := Date{Year: year, Month: time.Month(month), Day: day}
	if !d.valid() {
		return Date{}, fmt.Errorf("invalid date %q: no such day", s)
	}
	return d, nil
}

// valid reports whether the fields name a real calendar day.
func (d Date) valid() bool {
	if d.Year < 1 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return New(d.Year, d.Month, d.Day) == d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return New(d.Year, d.Month, d.Day+n)
}

// Compare returns -1, 0 or +1 by calendar order.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool  { return d.Compare(o) == 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// FormatDDMMYYYY renders d in the canonical DD/MM/YYYY form.
func FormatDDMMYYYY(d Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// String implements fmt.Stringer using the canonical form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return FormatDDMMYYYY(d)
}

// ISO renders d as YYYY-MM-DD.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Basic renders d as YYYYMMDD, the RFC 5545 DATE form.
func (d Date) Basic() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON writes the canonical DD/MM/YYYY form, or null for the zero Date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(FormatDDMMYYYY(d))
}

// UnmarshalJSON accepts either encoding. Unparseable text decodes to the
// zero Date instead of failing the whole document.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// UnmarshalYAML accepts either encoding in YAML source files.
func (d *Date) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}
