package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12:30:45.5", 45045.5, true},
		{"00:00:00", 0, true},
		{"23:59:59.999999", 86399.999999, true},
		{"12:30:45xyz", 45045, true},
		{"12:30:45.25abc", 45045.25, true},
		{"12:30:45.", 45045, true},
		{"garbage", 0, false},
		{"24:00:00", 0, false},
		{"12:60:00", 0, false},
		{"1:30:45", 0, false},
		{"12:30", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseTime(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want int32
		ok   bool
	}{
		{"1970-01-01", 0, true},
		{"1970-01-02", 1, true},
		{"1969-12-31", -1, true},
		{"2020-01-01", 18262, true},
		// Day overflow rolls forward like a UTC calendar.
		{"2020-02-30", 18322, true},
		{"2020-13-01", 0, false},
		{"2020-1-01", 0, false},
		{"20200101", 0, false},
		{"garbage", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseDate(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDateTime(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"2020-01-01T00:00:00", 1577836800, true},
		{"2020-01-01T00:00:00.25", 1577836800.25, true},
		{"2020-01-01T12:00:00Z", 1577836800 + 43200, true},
		{"1970-01-01T00:00:01", 1, true},
		{"2020-01-01 00:00:00", 0, false},
		{"2020-01-01", 0, false},
		{"2020-01-01T0:00:00", 0, false},
		{"nope", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseDateTime(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-6, tc.in)
		}
	}
}
