package decode

import (
	"strconv"
	"time"
)

// Fixed-format scanners for TIME, DATE and DATETIME text. Each one consumes a
// strict prefix and reports the unread remainder; anything that does not
// match yields ok == false and the caller stores a null.

// digits reads exactly n ASCII digits from the front of s.
func digits(s string, n int) (int, bool) {
	if len(s) < n {
		return 0, false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	return v, true
}

// scanClock reads HH:MM:SS and returns the second of the day.
func scanClock(s string) (secs int, rest string, ok bool) {
	if len(s) < 8 || s[2] != ':' || s[5] != ':' {
		return 0, s, false
	}
	h, ok1 := digits(s[0:], 2)
	m, ok2 := digits(s[3:], 2)
	sec, ok3 := digits(s[6:], 2)
	if !ok1 || !ok2 || !ok3 || h > 23 || m > 59 || sec > 61 {
		return 0, s, false
	}
	return h*3600 + m*60 + sec, s[8:], true
}

// scanDate reads YYYY-MM-DD.
func scanDate(s string) (y, m, d int, rest string, ok bool) {
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return 0, 0, 0, s, false
	}
	y, ok1 := digits(s[0:], 4)
	m, ok2 := digits(s[5:], 2)
	d, ok3 := digits(s[8:], 2)
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, 0, s, false
	}
	return y, m, d, s[10:], true
}

// fraction reads a decimal fraction starting at a leading '.', such as
// ".25" in "12:00:00.25xyz". Anything after the last digit is ignored.
func fraction(s string) float64 {
	if len(s) == 0 || s[0] != '.' {
		return 0
	}
	end := 1
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 1 {
		return 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return v
}

// parseTime converts HH:MM:SS[.fff] into seconds since midnight.
func parseTime(s string) (float64, bool) {
	secs, rest, ok := scanClock(s)
	if !ok {
		return 0, false
	}
	return float64(secs) + fraction(rest), true
}

// parseDate converts YYYY-MM-DD into days since 1970-01-01. Out-of-range
// days roll into the next month, the same way a UTC calendar normalizes them.
func parseDate(s string) (int32, bool) {
	y, m, d, _, ok := scanDate(s)
	if !ok {
		return 0, false
	}
	return int32(civilSeconds(y, m, d, 0) / 86400), true
}

// parseDateTime converts YYYY-MM-DDTHH:MM:SS[.fff] into epoch seconds. The
// wall clock is read as UTC; zone suffixes are not interpreted.
func parseDateTime(s string) (float64, bool) {
	y, m, d, rest, ok := scanDate(s)
	if !ok || len(rest) == 0 || rest[0] != 'T' {
		return 0, false
	}
	secs, rest, ok := scanClock(rest[1:])
	if !ok {
		return 0, false
	}
	return float64(civilSeconds(y, m, d, secs)) + fraction(rest), true
}

func civilSeconds(y, m, d, secs int) int64 {
	return time.Date(y, time.Month(m), d, 0, 0, secs, 0, time.UTC).Unix()
}
