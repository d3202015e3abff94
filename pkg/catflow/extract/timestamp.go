package extract

import (
	"strconv"
	"strings"
	"time"
)

// secondsCutoff separates unix seconds from unix milliseconds. Millisecond
// values for any date after 1973 are above it.
const secondsCutoff = 100_000_000_000

// ParseTimestamp reads an event timestamp. Integers are unix milliseconds,
// or unix seconds when below 1e11; anything else must be RFC 3339.
// An empty value yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < secondsCutoff && n > -secondsCutoff {
			return time.Unix(n, 0).UTC(), nil
		}
		return time.UnixMilli(n).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
