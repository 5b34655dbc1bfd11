package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is the YAML schema root of a rule-set file.
type Document struct {
	Version  string          `yaml:"version"`
	Settings SettingsSection `yaml:"settings"`
	Rules    []RuleEntry     `yaml:"rules"`
}

// SettingsSection holds global knobs; nil pointers fall back to defaults.
type SettingsSection struct {
	LogLevel                  string    `yaml:"log_level"`
	FailOpen                  *bool     `yaml:"fail_open"`
	MaxContextBytes           int       `yaml:"max_context_bytes"`
	ValidatorTimeout          *Duration `yaml:"validator_timeout"`
	ValidatorFailureThreshold *int      `yaml:"validator_failure_threshold"`
}

// RuleEntry is one rule as written in the document.
type RuleEntry struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Enabled     *bool          `yaml:"enabled"`
	Matchers    MatchersEntry  `yaml:"matchers"`
	Actions     ActionsSection `yaml:"actions"`
}

// MatchersEntry lists the matcher categories.
type MatchersEntry struct {
	Events       StringList `yaml:"events"`
	Tools        StringList `yaml:"tools"`
	Extensions   StringList `yaml:"extensions"`
	Directories  StringList `yaml:"directories"`
	CommandMatch string     `yaml:"command_match"`
	PathMatch    string     `yaml:"path_match"`
}

// ActionsSection is the action clause. More than one key may be present.
type ActionsSection struct {
	Block        bool       `yaml:"block"`
	BlockIfMatch string     `yaml:"block_if_match"`
	Reason       string     `yaml:"reason"`
	Inject       StringList `yaml:"inject"`
	Run          string     `yaml:"run"`
	Timeout      *Duration  `yaml:"timeout"`
}

// IsEmpty reports whether no action key was set.
func (a ActionsSection) IsEmpty() bool {
	return !a.Block && a.BlockIfMatch == "" && len(a.Inject) == 0 && a.Run == ""
}

// StringList accepts either a scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*s = values
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// Duration accepts seconds (int or float) or a Go duration string ("1500ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", node.Line)
	}
	value := strings.TrimSpace(node.Value)
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("line %d: duration must not be negative", node.Line)
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, value)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: duration must not be negative", node.Line)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders durations as Go duration strings.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
