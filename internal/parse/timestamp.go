package parse

import (
	"fmt"
	"strings"
	"time"
)

// Layouts the upstream uses for its naive date-time strings. The API reports
// timestamps without a zone designator; they are always UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NaiveUTC parses a naive upstream timestamp, interpreting it as UTC. A
// trailing 'Z' is tolerated in case the upstream ever starts sending one.
func NaiveUTC(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	trimmed := strings.TrimSuffix(s, "Z")
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", s)
}
