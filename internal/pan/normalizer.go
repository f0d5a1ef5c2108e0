package pan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize trims surrounding whitespace and upper-cases letters. NULL
// records become the empty sentinel, which always fails the format rule.
func Normalize(r RawRecord) string {
	if !r.Valid {
		return ""
	}
	trimmed := strings.TrimSpace(r.Value)
	if trimmed == "" {
		return ""
	}
	// Full Unicode upper-casing: dotless ı becomes I.
	// Casers are stateful; one per call.
	return cases.Upper(language.Und).String(trimmed)
}

// NormalizeAll normalizes records in input order.
func NormalizeAll(records []RawRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = Normalize(r)
	}
	return out
}

// DecodeRawRecords parses a JSON array whose elements must be strings or
// null. Any other element type is rejected rather than coerced.
func DecodeRawRecords(data []byte) ([]RawRecord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: expected JSON array: %v", ErrInvalidRecord, err)
	}
	out := make([]RawRecord, 0, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if bytes.Equal(e, []byte("null")) {
			out = append(out, Null())
			continue
		}
		if len(e) == 0 || e[0] != '"' {
			return nil, fmt.Errorf("%w: element %d is %s", ErrInvalidRecord, i, jsonKind(e))
		}
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidRecord, i, err)
		}
		out = append(out, Raw(s))
	}
	return out, nil
}

func jsonKind(e json.RawMessage) string {
	if len(e) == 0 {
		return "empty"
	}
	switch e[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case 't', 'f':
		return "a boolean"
	default:
		return "a number"
	}
}
