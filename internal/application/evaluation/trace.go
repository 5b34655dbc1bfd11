package evaluation

import "github.com/doeshing/hookgate/internal/domain"

// TraceCollector records one RuleEvaluation per considered rule. A nil
// collector records nothing, which is how live evaluation runs.
type TraceCollector struct {
	entries []domain.RuleEvaluation
}

func NewTraceCollector() *TraceCollector {
	return &TraceCollector{entries: []domain.RuleEvaluation{}}
}

// Record appends an entry.
func (t *TraceCollector) Record(entry domain.RuleEvaluation) {
	if t == nil {
		return
	}
	t.entries = append(t.entries, entry)
}

// Entries returns the recorded trace in evaluation order.
func (t *TraceCollector) Entries() []domain.RuleEvaluation {
	if t == nil {
		return nil
	}
	out := make([]domain.RuleEvaluation, len(t.entries))
	copy(out, t.entries)
	return out
}
