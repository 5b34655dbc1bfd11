package domain

import "time"

// LogEntry is one append-only audit record per processed event. PrevHash and
// Hash chain the records of one stream: Hash covers PrevHash and the rest of
// the record, so editing or removing a line breaks the chain after it.
type LogEntry struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	SessionID      string            `json:"session_id,omitempty"`
	Event          EventKind         `json:"event"`
	Tool           string            `json:"tool,omitempty"`
	Command        string            `json:"command,omitempty"`
	Path           string            `json:"path,omitempty"`
	Outcome        Outcome           `json:"outcome"`
	Reason         string            `json:"reason,omitempty"`
	ContextBytes   int               `json:"context_bytes"`
	Truncated      bool              `json:"truncated,omitempty"`
	MatchedRules   []string          `json:"matched_rules"`
	Rules          []RuleTiming      `json:"rules"`
	Notes          []Note            `json:"notes,omitempty"`
	RuleSet        RuleSetProvenance `json:"rule_set"`
	DurationMicros int64             `json:"duration_us"`
	PrevHash       string            `json:"prev_hash,omitempty"`
	Hash           string            `json:"hash,omitempty"`
}

// MatchedRule reports whether name is among the matched rules.
func (e LogEntry) MatchedRule(name string) bool {
	for _, matched := range e.MatchedRules {
		if matched == name {
			return true
		}
	}
	return false
}

// RuleTiming records what one rule did during an evaluation.
type RuleTiming struct {
	Name          string            `json:"name"`
	Matched       bool              `json:"matched"`
	Actions       []ActionKind      `json:"actions,omitempty"`
	Result        string            `json:"result"`
	ElapsedMicros int64             `json:"elapsed_us"`
	Validator     *ValidatorSummary `json:"validator,omitempty"`
}

// ValidatorSummary is the audit view of a validator run.
type ValidatorSummary struct {
	Command       []string        `json:"command"`
	Status        ValidatorStatus `json:"status"`
	ExitCode      int             `json:"exit_code"`
	ElapsedMicros int64           `json:"elapsed_us"`
	Error         string          `json:"error,omitempty"`
}

// RuleSetProvenance identifies the rule set that produced a decision.
type RuleSetProvenance struct {
	Source   string `json:"source,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// AuditQuery selects entries from the audit stream.
type AuditQuery struct {
	Rule      string
	SessionID string
	Limit     int
}

// Matches reports whether entry satisfies the query filters.
func (q AuditQuery) Matches(entry LogEntry) bool {
	if q.Rule != "" && !entry.MatchedRule(q.Rule) {
		return false
	}
	if q.SessionID != "" && entry.SessionID != q.SessionID {
		return false
	}
	return true
}
