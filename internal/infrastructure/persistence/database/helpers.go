// Package database provides database helper functions
package database

import (
	"strings"
	"time"
)

// TimeLayout is a fixed-width UTC layout so stored timestamps sort lexically
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t for storage
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a timestamp written by FormatTime
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// CheckSlowQuery logs the query on the slow-query channel when it exceeded the threshold
func (db *DB) CheckSlowQuery(query string, duration time.Duration) {
	if db.logger == nil || db.slowQueryThreshold <= 0 {
		return
	}

	threshold := db.slowQueryThreshold
	// Schema setup runs once at boot and is allowed more time
	if strings.HasPrefix(query, "SCHEMA_") {
		threshold *= 3
	}

	if duration > threshold {
		db.logger.LogSlowQuery(query, duration)
	}
}

