package pan

// Engine evaluates identifiers against an ordered rule cascade. It holds no
// mutable state and may be shared across goroutines.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine running DefaultRules.
func NewEngine() *Engine {
	rules := make([]Rule, len(DefaultRules))
	copy(rules, DefaultRules)
	return &Engine{rules: rules}
}

var defaultEngine = NewEngine()

// Classify runs the default cascade.
func Classify(id string) Verdict { return defaultEngine.Classify(id) }

// Classify returns the verdict of the first matching rule, or VerdictValid
// when none match. Later rules are not evaluated once one matches.
func (e *Engine) Classify(id string) Verdict {
	for _, r := range e.rules {
		if r.Match(id) {
			return r.Verdict
		}
	}
	return VerdictValid
}

// Rules returns the cascade in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ClassifyAll classifies identifiers in order.
func (e *Engine) ClassifyAll(ids []string) []Outcome {
	out := make([]Outcome, len(ids))
	for i, id := range ids {
		out[i] = Outcome{Identifier: id, Verdict: e.Classify(id)}
	}
	return out
}
