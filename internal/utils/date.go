// internal/utils/date.go
package utils

import (
	"time"
)

const TimestampLayout = "2006-01-02 15:04:05"

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(TimestampLayout)
}

// IsOlderThan reports whether t lies more than d in the past. The zero time
// is always older.
func IsOlderThan(t time.Time, d time.Duration) bool {
	if t.IsZero() {
		return true
	}
	return time.Since(t) > d
}
