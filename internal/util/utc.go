package util

import (
	"fmt"
	"time"
)

const utcLayout = "2006-01-02T15:04:05Z"

// ParseUTC converts an ISO-8601 timestamp like "2024-05-01T12:00:00Z"
// to epoch seconds.
func ParseUTC(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %s", s)
	}
	return t.Unix(), nil
}

// ToUTC renders epoch seconds as an ISO-8601 UTC timestamp.
func ToUTC(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(utcLayout)
}
