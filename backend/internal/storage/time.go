package storage

import "time"

// TimeFormat is the fixed-width UTC layout timestamps are stored in, so that
// text ordering equals chronological ordering on every engine.
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a value written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeFormat, s)
}

// Now is the clock used for stored timestamps.
func Now() time.Time {
	return time.Now().UTC()
}
