package pan

import "regexp"

// Positions within a well-formed identifier: letters [0,5), digits [5,9).
const (
	identifierLen = 10
	lettersStart  = 0
	lettersEnd    = 5
	digitsStart   = 5
	digitsEnd     = 9
)

var formatPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// Rule maps a predicate to the verdict it produces when it matches.
// Every rule after the format rule assumes a well-formed identifier.
type Rule struct {
	Name    string
	Verdict Verdict
	Match   func(id string) bool
}

// DefaultRules is the cascade in evaluation order.
var DefaultRules = []Rule{
	{Name: "format", Verdict: VerdictInvalidFormat, Match: malformed},
	{Name: "adjacent_alphabets", Verdict: VerdictInvalidAdjacentAlphabets, Match: func(id string) bool {
		return hasAdjacentRepeat(id[lettersStart:lettersEnd])
	}},
	{Name: "adjacent_digits", Verdict: VerdictInvalidAdjacentDigits, Match: func(id string) bool {
		return hasAdjacentRepeat(id[digitsStart:digitsEnd])
	}},
	{Name: "sequential_alphabets", Verdict: VerdictInvalidSequentialAlphabets, Match: func(id string) bool {
		return isAscendingRun(id[lettersStart:lettersEnd])
	}},
	{Name: "sequential_digits", Verdict: VerdictInvalidSequentialDigits, Match: func(id string) bool {
		return isAscendingRun(id[digitsStart:digitsEnd])
	}},
}

func malformed(id string) bool {
	// Length check skips the regexp for most malformed input.
	return len(id) != identifierLen || !formatPattern.MatchString(id)
}

// hasAdjacentRepeat reports whether any byte equals its predecessor.
func hasAdjacentRepeat(span string) bool {
	for i := 1; i < len(span); i++ {
		if span[i] == span[i-1] {
			return true
		}
	}
	return false
}

// isAscendingRun reports whether every byte is exactly one more than its
// predecessor across the whole span. A partial run does not count.
func isAscendingRun(span string) bool {
	if len(span) < 2 {
		return false
	}
	for i := 1; i < len(span); i++ {
		if span[i] != span[i-1]+1 {
			return false
		}
	}
	return true
}
