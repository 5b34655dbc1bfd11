package domain

// Outcome classifies a decision for the audit log.
type Outcome string

const (
	OutcomeAllow  Outcome = "allow"
	OutcomeBlock  Outcome = "block"
	OutcomeInject Outcome = "inject"
)

// NoteLevel grades a note attached to a decision.
type NoteLevel string

const (
	NoteInfo NoteLevel = "info"
	NoteWarn NoteLevel = "warn"
)

// Note records something the operator should know about an evaluation, such
// as a validator that timed out and was ignored.
type Note struct {
	Level   NoteLevel `json:"level"`
	Rule    string    `json:"rule,omitempty"`
	Message string    `json:"message"`
}

// Decision is the aggregated result of one evaluation pass.
type Decision struct {
	Continue     bool     `json:"continue"`
	Context      string   `json:"context"`
	Reason       string   `json:"reason"`
	MatchedRules []string `json:"matched_rule_names"`
	Truncated    bool     `json:"truncated,omitempty"`
	Notes        []Note   `json:"notes,omitempty"`
}

// Allow is the empty pass-through decision.
func Allow() Decision {
	return Decision{Continue: true, MatchedRules: []string{}}
}

// Outcome classifies the decision.
func (d Decision) Outcome() Outcome {
	switch {
	case !d.Continue:
		return OutcomeBlock
	case d.Context != "":
		return OutcomeInject
	default:
		return OutcomeAllow
	}
}

// Blocked reports whether the action must not proceed.
func (d Decision) Blocked() bool {
	return !d.Continue
}
