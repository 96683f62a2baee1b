package aggregator

import (
	"strings"
	"time"
)

// Layouts seen in RSS, Atom and JSON-over-HTTP feed adapters, most common first
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	"Monday, 02-Jan-06 15:04:05 -0700",
	time.ANSIC,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// RFC 822 zone names. time.Parse gives unknown abbreviations a zero offset,
// so these are rewritten to numeric offsets before parsing.
var zoneOffsets = map[string]string{
	"UT":  "+0000",
	"UTC": "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// numericZone replaces a trailing zone name with its offset
func numericZone(value string) string {
	i := strings.LastIndexByte(value, ' ')
	if i < 0 {
		return value
	}
	if offset, ok := zoneOffsets[strings.ToUpper(value[i+1:])]; ok {
		return value[:i+1] + offset
	}
	return value
}

// ParseTimestamp parses a feed timestamp. Empty, unparseable and zero
// values yield nil; they are treated as absent rather than as errors.
func ParseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	value = numericZone(value)

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err != nil || t.IsZero() {
			continue
		}
		t = t.UTC()
		return &t
	}

	return nil
}
