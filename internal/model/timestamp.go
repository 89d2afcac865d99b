package model

import "time"

// TimeLayout is the canonical ISO-8601 form stored for every timestamp:
// UTC, millisecond precision, fixed width. Values in this layout order
// correctly under plain string comparison.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatTimePtr keeps a missing timestamp as nil.
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
