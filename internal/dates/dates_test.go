package dates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse_BothEncodingsAgree(t *testing.T) {
	tests := []struct {
		slashed string
		iso     string
		want    Date
	}{
		{"29/02/2024", "2024-02-29", Date{2024, time.February, 29}},
		{"31/12/2025", "2025-12-31", Date{2025, time.December, 31}},
		{"05/01/2026", "2026-01-05", Date{2026, time.January, 5}},
		{"5/1/2026", "2026-1-5", Date{2026, time.January, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.slashed, func(t *testing.T) {
			a, err := Parse(tt.slashed)
			require.NoError(t, err)
			b, err := Parse(tt.iso)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a)
			assert.Equal(t, a, b)
		})
	}
}

func TestParse_Fallbacks(t *testing.T) {
	d, err := Parse("20260301")
	require.NoError(t, err)
	assert.Equal(t, Date{2026, time.March, 1}, d)

	d, err = Parse("2026-03-01T10:30:00")
	require.NoError(t, err)
	assert.Equal(t, Date{2026, time.March, 1}, d)
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "31/02/2026", "00/01/2026", "1/2", "aa/bb/cccc", "not a date", "2026-13-01"} {
		t.Run(in, func(t *testing.T) {
			d, err := Parse(in)
			assert.Error(t, err)
			assert.True(t, d.IsZero())
		})
	}
}

func TestFormatDDMMYYYY_RoundTrip(t *testing.T) {
	start := New(2023, time.December, 25)
	for i := 0; i < 800; i++ {
		d := start.AddDays(i)
		got, err := Parse(FormatDDMMYYYY(d))
		require.NoError(t, err)
		require.Equal(t, d, got, "round trip of %s", d.ISO())
	}
}

func TestFormats(t *testing.T) {
	d := New(2026, time.January, 5)
	assert.Equal(t, "05/01/2026", FormatDDMMYYYY(d))
	assert.Equal(t, "05/01/2026", d.String())
	assert.Equal(t, "2026-01-05", d.ISO())
	assert.Equal(t, "20260105", d.Basic())
	assert.Equal(t, "", Date{}.String())
}

func TestAddDays_CrossesBoundaries(t *testing.T) {
	assert.Equal(t, New(2026, time.January, 1), New(2025, time.December, 31).AddDays(1))
	assert.Equal(t, New(2024, time.February, 29), New(2024, time.February, 28).AddDays(1))
	assert.Equal(t, New(2026, time.March, 1), New(2026, time.February, 28).AddDays(1))
}

func TestCompare(t *testing.T) {
	a := New(2026, time.January, 10)
	b := New(2026, time.January, 12)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(New(2026, time.January, 10)))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, New(2025, time.December, 31).Compare(a))
}

func TestTime_LocalMidnight(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	tm := New(2026, time.June, 1).Time(loc)
	assert.Equal(t, 0, tm.Hour())
	assert.Equal(t, loc, tm.Location())
	assert.Equal(t, New(2026, time.June, 1), FromTime(tm))
}

func TestJSON(t *testing.T) {
	type doc struct {
		Start Date  `json:"start"`
		End   *Date `json:"end,omitempty"`
	}

	out, err := json.Marshal(doc{Start: New(2026, time.June, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"01/06/2026"}`, string(out))

	var in doc
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2026-06-01","end":"05/06/2026"}`), &in))
	assert.Equal(t, New(2026, time.June, 1), in.Start)
	require.NotNil(t, in.End)
	assert.Equal(t, New(2026, time.June, 5), *in.End)

	require.NoError(t, json.Unmarshal([]byte(`{"start":"garbage"}`), &in))
	assert.True(t, in.Start.IsZero())
}

func TestYAML(t *testing.T) {
	var in struct {
		Start Date `yaml:"start"`
		End   Date `yaml:"end"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("start: \"01/06/2026\"\nend: 2026-06-05\n"), &in))
	assert.Equal(t, New(2026, time.June, 1), in.Start)
	assert.Equal(t, New(2026, time.June, 5), in.End)
}

func TestClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	got, err := AddMinutes("23:30", 60)
	require.NoError(t, err)
	assert.Equal(t, "00:30", got)

	got, err = AddMinutes("08:00", 90)
	require.NoError(t, err)
	assert.Equal(t, "09:30", got)

	_, err = AddMinutes("25:00", 10)
	assert.Error(t, err)
	_, err = ParseClock("9")
	assert.Error(t, err)

	assert.Equal(t, "083000", ClockBasic("08:30"))
	assert.Equal(t, "000000", ClockBasic(""))
	assert.Equal(t, "23:59", FormatClock(-1))
}
