package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Safe defaults used when a configured lifetime fails to parse. An
// unparsable lifetime must fail closed rather than silently grant a
// long-lived token.
const (
	DefaultAccessLifetime  = 15 * time.Minute
	DefaultRefreshLifetime = 7 * 24 * time.Hour
)

var lifetimeUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// ParseLifetime parses lifetime strings like "90s", "15m", "12h", "7d"
// using a fixed unit table. time.ParseDuration is not used because it has
// no day unit and accepts fractional compound forms we do not want in
// config values.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("lifetime %q: want <count><s|m|h|d>", s)
	}
	mult, ok := lifetimeUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("lifetime %q: unknown unit %q", s, s[len(s)-1:])
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("lifetime %q: count must be a positive integer", s)
	}
	return time.Duration(n*mult) * time.Second, nil
}
