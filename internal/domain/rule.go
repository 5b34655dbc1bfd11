package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Pattern is a regular expression compiled once at load time. The zero value
// means the category is absent.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

// CompilePattern compiles src, wrapping failures in ErrPattern.
func CompilePattern(src string) (Pattern, error) {
	re, err := regexp.Compile(src)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %q: %v", ErrPattern, src, err)
	}
	return Pattern{Source: src, re: re}, nil
}

// MustPattern is CompilePattern for literals known to be valid.
func MustPattern(src string) Pattern {
	p, err := CompilePattern(src)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether no pattern was configured.
func (p Pattern) IsZero() bool {
	return p.re == nil
}

// MatchString performs an unanchored search.
func (p Pattern) MatchString(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

// FindString returns the leftmost match, "" when there is none.
func (p Pattern) FindString(s string) string {
	if p.re == nil {
		return ""
	}
	return p.re.FindString(s)
}

func (p Pattern) String() string {
	return p.Source
}

// MatcherClause is an AND across categories; each category is an OR of its
// alternatives. Nil/zero categories do not constrain the match.
type MatcherClause struct {
	Events       []EventKind
	Tools        []string
	Extensions   []string
	Directories  []string
	CommandMatch Pattern
	PathMatch    Pattern
}

// IsEmpty reports whether the clause matches every event.
func (m MatcherClause) IsEmpty() bool {
	return len(m.Events) == 0 &&
		len(m.Tools) == 0 &&
		len(m.Extensions) == 0 &&
		len(m.Directories) == 0 &&
		m.CommandMatch.IsZero() &&
		m.PathMatch.IsZero()
}

// ActionKind tags the Action variants.
type ActionKind string

const (
	ActionBlock        ActionKind = "block"
	ActionBlockIfMatch ActionKind = "block_if_match"
	ActionInject       ActionKind = "inject"
	ActionRun          ActionKind = "run"
)

// Action is the closed set of effects a matched rule can produce.
type Action interface {
	Kind() ActionKind
}

// BlockAction blocks unconditionally.
type BlockAction struct {
	Reason string
}

// BlockIfMatchAction blocks when Pattern matches the event scan target.
type BlockIfMatchAction struct {
	Pattern Pattern
	Reason  string
}

// InjectAction surfaces text to the agent without blocking.
type InjectAction struct {
	Text []string
}

// RunAction delegates the decision to an external validator.
type RunAction struct {
	Source  string
	Argv    []string
	Timeout time.Duration
}

func (BlockAction) Kind() ActionKind        { return ActionBlock }
func (BlockIfMatchAction) Kind() ActionKind { return ActionBlockIfMatch }
func (InjectAction) Kind() ActionKind       { return ActionInject }
func (RunAction) Kind() ActionKind          { return ActionRun }

// Rule is a named matcher/action pair.
type Rule struct {
	Name           string
	Description    string
	Enabled        bool
	DisabledReason string
	Matcher        MatcherClause
	Actions        []Action
}

// ActionKinds returns the kinds of the rule's actions in execution order.
func (r Rule) ActionKinds() []ActionKind {
	kinds := make([]ActionKind, 0, len(r.Actions))
	for _, action := range r.Actions {
		kinds = append(kinds, action.Kind())
	}
	return kinds
}

// RuleSet is the loaded, read-only policy. It is shared by concurrent
// evaluations and never mutated after load.
type RuleSet struct {
	Rules    []Rule
	Settings Settings
	Source   string
	Digest   string
	Fallback bool
	Issues   []ConfigIssue
	LoadedAt time.Time
}

// EnabledCount returns the number of rules that will be evaluated.
func (rs *RuleSet) EnabledCount() int {
	if rs == nil {
		return 0
	}
	n := 0
	for _, rule := range rs.Rules {
		if rule.Enabled {
			n++
		}
	}
	return n
}

// HasErrors reports whether any issue is error severity.
func (rs *RuleSet) HasErrors() bool {
	if rs == nil {
		return false
	}
	for _, issue := range rs.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Provenance identifies the rule set in audit records.
func (rs *RuleSet) Provenance() RuleSetProvenance {
	if rs == nil {
		return RuleSetProvenance{Fallback: true}
	}
	return RuleSetProvenance{Source: rs.Source, Digest: rs.Digest, Fallback: rs.Fallback}
}

// EmptyRuleSet is the pass-through policy used when the document cannot be loaded.
func EmptyRuleSet(source string, issues ...ConfigIssue) *RuleSet {
	return &RuleSet{
		Settings: DefaultSettings(),
		Source:   source,
		Fallback: true,
		Issues:   issues,
		LoadedAt: time.Now(),
	}
}
