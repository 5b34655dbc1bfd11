package domain

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrConfiguration marks a missing or malformed rule-set document.
	ErrConfiguration = errors.New("configuration error")
	// ErrPattern marks an invalid regular expression or run command in one rule.
	ErrPattern = errors.New("pattern error")
	// ErrValidator marks a failed, hung or missing external validator.
	ErrValidator = errors.New("validator failure")
	// ErrLogWrite marks a failed audit append.
	ErrLogWrite = errors.New("audit log write failure")
)

// Severity grades configuration issues.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ConfigIssue is one problem found while loading or validating a rule set.
type ConfigIssue struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule,omitempty"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

func (i ConfigIssue) String() string {
	if i.Rule == "" {
		return string(i.Severity) + ": " + i.Message
	}
	return string(i.Severity) + ": rule " + i.Rule + ": " + i.Message
}

// ErrInvalidEvent marks an input record that cannot be decoded into an Event.
var ErrInvalidEvent = errors.New("invalid event")
