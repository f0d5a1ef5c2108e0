package logger

import (
	"regexp"
	"strings"
)

var panPattern = regexp.MustCompile(`\b[A-Za-z]{5}[0-9]{4}[A-Za-z]\b`)

// RedactPAN masks an identifier for safe logging, keeping the first two and
// last two characters.
// "ABXCD1934F" → "AB******4F"
// Values of four characters or fewer are fully masked: "ABC" → "***"
func RedactPAN(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return id[:2] + strings.Repeat("*", len(id)-4) + id[len(id)-2:]
}
