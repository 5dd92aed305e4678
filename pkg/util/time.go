package util

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTimestamp formats a time position in seconds as M:SS.t for the
// transport display.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%d:%04.1f", minutes, secs)
}

// ParseTimestamp parses a timeline position: plain seconds ("45.5"),
// MM:SS, or HH:MM:SS. It returns seconds.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}
	if total < 0 {
		return 0, fmt.Errorf("timestamp must not be negative: %s", s)
	}
	return total, nil
}
