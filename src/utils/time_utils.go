package utils

import (
	"time"

	logger "github.com/sirupsen/logrus"
)

// ResetTime truncates t to the given granularity: "minute", "hour" or "day".
// Days are truncated in UTC.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	case "day":
		return StartOfDayUTC(t)
	default:
		logger.WithField("granularity", granularity).Warn("invalid granularity, use minute, hour or day")
		return t
	}
}

// StartOfDayUTC returns midnight UTC of the day containing t.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats the UTC calendar date of t.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
