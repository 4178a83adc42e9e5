package sqlite

import (
	"fmt"
	"time"
)

// Fixed-width fractional seconds: RFC3339Nano trims trailing zeros, which
// would break the lexicographic ordering the latest-wins credential query
// relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serializes a timestamp for TEXT column storage, UTC so the
// column sorts in chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime deserializes a TEXT column timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
