// Package pan validates Indian PAN identifiers: normalization, batch
// deduplication, and the ordered rule cascade that assigns each identifier
// exactly one verdict.
package pan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Verdict is the single classification label assigned to an identifier.
type Verdict string

const (
	VerdictValid                      Verdict = "valid"
	VerdictInvalidFormat              Verdict = "invalid_format"
	VerdictInvalidAdjacentAlphabets   Verdict = "invalid_adjacent_alphabets"
	VerdictInvalidAdjacentDigits      Verdict = "invalid_adjacent_digits"
	VerdictInvalidSequentialAlphabets Verdict = "invalid_sequential_alphabets"
	VerdictInvalidSequentialDigits    Verdict = "invalid_sequential_digits"
)

var allVerdicts = []Verdict{
	VerdictValid,
	VerdictInvalidFormat,
	VerdictInvalidAdjacentAlphabets,
	VerdictInvalidAdjacentDigits,
	VerdictInvalidSequentialAlphabets,
	VerdictInvalidSequentialDigits,
}

// AllVerdicts returns every verdict, valid first, then failures in cascade order.
func AllVerdicts() []Verdict {
	out := make([]Verdict, len(allVerdicts))
	copy(out, allVerdicts)
	return out
}

// IsValid reports whether v is the passing verdict.
func (v Verdict) IsValid() bool { return v == VerdictValid }

// ParseVerdict maps a label back to its Verdict.
func ParseVerdict(s string) (Verdict, error) {
	for _, v := range allVerdicts {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVerdict, s)
}

// RawRecord is one input value as delivered by a source. Valid is false
// when the source held NULL, mirroring sql.NullString.
type RawRecord struct {
	Value string
	Valid bool
}

// Raw wraps a present string value.
func Raw(s string) RawRecord { return RawRecord{Value: s, Valid: true} }

// Null is an absent value.
func Null() RawRecord { return RawRecord{} }

// RawStrings wraps every value as present.
func RawStrings(values ...string) []RawRecord {
	out := make([]RawRecord, len(values))
	for i, v := range values {
		out[i] = Raw(v)
	}
	return out
}

// Outcome pairs a deduplicated identifier with its verdict.
type Outcome struct {
	Identifier string  `json:"identifier"`
	Verdict    Verdict `json:"verdict"`
}

// Summary holds aggregate counts over the deduplicated set.
// TotalValid + TotalInvalid always equals TotalRecords.
type Summary struct {
	TotalRecords int             `json:"total_records"`
	TotalValid   int             `json:"total_valid"`
	TotalInvalid int             `json:"total_invalid"`
	ByVerdict    map[Verdict]int `json:"by_verdict"`
}

// Summarize counts outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{ByVerdict: make(map[Verdict]int, len(allVerdicts))}
	for _, v := range allVerdicts {
		s.ByVerdict[v] = 0
	}
	for _, o := range outcomes {
		s.TotalRecords++
		s.ByVerdict[o.Verdict]++
		if o.Verdict.IsValid() {
			s.TotalValid++
		} else {
			s.TotalInvalid++
		}
	}
	return s
}

// Result is the full output of one pipeline run.
type Result struct {
	RunID    uuid.UUID  `json:"run_id"`
	Source   string     `json:"source,omitempty"`
	Summary  Summary    `json:"summary"`
	Dedup    DedupStats `json:"dedup"`
	Outcomes []Outcome  `json:"outcomes"`

	index map[string]int
}

func newResult(outcomes []Outcome, stats DedupStats) *Result {
	r := &Result{
		RunID:    uuid.New(),
		Summary:  Summarize(outcomes),
		Dedup:    stats,
		Outcomes: outcomes,
	}
	r.buildIndex()
	return r
}

func (r *Result) buildIndex() {
	r.index = make(map[string]int, len(r.Outcomes))
	for i, o := range r.Outcomes {
		r.index[o.Identifier] = i
	}
}

// Lookup returns the verdict recorded for an identifier. The argument is
// normalized first, so raw input spellings resolve to the same entry.
func (r *Result) Lookup(identifier string) (Verdict, bool) {
	id := Normalize(Raw(identifier))
	if r.index == nil {
		// Decoded results carry no index.
		for _, o := range r.Outcomes {
			if o.Identifier == id {
				return o.Verdict, true
			}
		}
		return "", false
	}
	i, ok := r.index[id]
	if !ok {
		return "", false
	}
	return r.Outcomes[i].Verdict, true
}

// Invalid returns the outcomes that failed, in result order.
func (r *Result) Invalid() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Verdict.IsValid() {
			out = append(out, o)
		}
	}
	return out
}

// RunSummary is the persisted header of a run, without its outcomes.
type RunSummary struct {
	RunID     string     `json:"run_id"`
	Source    string     `json:"source,omitempty"`
	Summary   Summary    `json:"summary"`
	Dedup     DedupStats `json:"dedup"`
	CreatedAt time.Time  `json:"created_at"`
}

// Header returns the summary part of r stamped with at.
func (r *Result) Header(at time.Time) RunSummary {
	return RunSummary{
		RunID:     r.RunID.String(),
		Source:    r.Source,
		Summary:   r.Summary,
		Dedup:     r.Dedup,
		CreatedAt: at.UTC(),
	}
}
