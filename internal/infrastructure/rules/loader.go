package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/hookgate/internal/application/matcher"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/filesystem"
	"github.com/doeshing/hookgate/internal/ports"
)

// Loader reads and compiles rule-set documents. It never fails: a missing or
// malformed document yields a pass-through rule set carrying the issue.
type Loader struct {
	log ports.Logger
	now func() time.Time
}

// NewLoader builds a new loader.
func NewLoader(log ports.Logger) *Loader {
	return &Loader{log: log, now: time.Now}
}

// Load implements ports.RuleSetLoader.
func (l *Loader) Load(path string) *domain.RuleSet {
	path = filesystem.ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf("cannot read rule set: %v", err)
		if errors.Is(err, fs.ErrNotExist) {
			msg = "rule set not found"
		}
		return l.fallback(path, fmt.Errorf("%w: %s: %s", domain.ErrConfiguration, path, msg), msg)
	}
	return l.Parse(data, path)
}

// Parse compiles an in-memory document. source is recorded as provenance.
func (l *Loader) Parse(data []byte, source string) *domain.RuleSet {
	var doc Document
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			msg := fmt.Sprintf("malformed rule set: %v", err)
			return l.fallback(source, fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, source, err), msg)
		}
	}

	rs := Compile(doc, source)
	rs.Digest = digest(data)
	rs.LoadedAt = l.now()
	for _, issue := range rs.Issues {
		l.log.Warn("rule set issue", map[string]interface{}{
			"source":   source,
			"severity": string(issue.Severity),
			"rule":     issue.Rule,
			"message":  issue.Message,
		})
	}
	return rs
}

func (l *Loader) fallback(source string, err error, msg string) *domain.RuleSet {
	l.log.Warn("rule set unavailable, allowing everything", map[string]interface{}{
		"source": source,
		"error":  err.Error(),
	})
	rs := domain.EmptyRuleSet(source, domain.ConfigIssue{
		Severity: domain.SeverityError,
		Message:  msg,
		Err:      err,
	})
	rs.LoadedAt = l.now()
	return rs
}

// Compile converts a parsed document into the evaluation model. Rules with
// invalid patterns are kept but disabled so traces can still show them.
func Compile(doc Document, source string) *domain.RuleSet {
	rs := &domain.RuleSet{
		Settings: compileSettings(doc.Settings),
		Source:   source,
	}
	seen := make(map[string]bool, len(doc.Rules))

	for i, entry := range doc.Rules {
		rule, issues := compileRule(i, entry)
		if seen[rule.Name] {
			issues = append(issues, disable(&rule, domain.ConfigIssue{
				Severity: domain.SeverityError,
				Rule:     rule.Name,
				Message:  "duplicate rule name; later definition disabled",
				Err:      fmt.Errorf("%w: duplicate rule %q", domain.ErrConfiguration, rule.Name),
			}))
		}
		seen[rule.Name] = true
		rs.Rules = append(rs.Rules, rule)
		rs.Issues = append(rs.Issues, issues...)
	}
	return rs
}

func compileSettings(s SettingsSection) domain.Settings {
	settings := domain.DefaultSettings()
	settings.LogLevel = s.LogLevel
	if s.FailOpen != nil {
		settings.FailOpen = *s.FailOpen
	}
	if s.MaxContextBytes > 0 {
		settings.MaxContextBytes = s.MaxContextBytes
	}
	if s.ValidatorTimeout != nil && *s.ValidatorTimeout > 0 {
		settings.ValidatorTimeout = time.Duration(*s.ValidatorTimeout)
	}
	if s.ValidatorFailureThreshold != nil && *s.ValidatorFailureThreshold >= 0 {
		settings.ValidatorFailureThreshold = *s.ValidatorFailureThreshold
	}
	return settings
}

func compileRule(index int, entry RuleEntry) (domain.Rule, []domain.ConfigIssue) {
	var issues []domain.ConfigIssue

	rule := domain.Rule{
		Name:        strings.TrimSpace(entry.Name),
		Description: entry.Description,
		Enabled:     entry.Enabled == nil || *entry.Enabled,
	}
	if rule.Name == "" {
		rule.Name = fmt.Sprintf("rule-%d", index+1)
		issues = append(issues, warning(rule.Name, "rule has no name; using its position"))
	}
	if !rule.Enabled {
		rule.DisabledReason = "disabled in configuration"
	}

	m := entry.Matchers
	rule.Matcher.Tools = nonEmpty(m.Tools)
	rule.Matcher.Extensions = nonEmpty(m.Extensions)
	rule.Matcher.Directories = nonEmpty(m.Directories)
	for _, dir := range rule.Matcher.Directories {
		if !matcher.ValidDirectoryEntry(dir) {
			issues = append(issues, disable(&rule, patternIssue(rule.Name, "directories entry "+strconv.Quote(dir), errors.New("malformed glob"))))
		}
	}

	for _, raw := range nonEmpty(m.Events) {
		kind, err := domain.ParseEventKind(raw)
		if err != nil {
			issues = append(issues, disable(&rule, domain.ConfigIssue{
				Severity: domain.SeverityError,
				Rule:     rule.Name,
				Message:  err.Error(),
				Err:      fmt.Errorf("%w: %v", domain.ErrConfiguration, err),
			}))
			continue
		}
		rule.Matcher.Events = append(rule.Matcher.Events, kind)
	}

	if m.CommandMatch != "" {
		p, err := domain.CompilePattern(m.CommandMatch)
		if err != nil {
			issues = append(issues, disable(&rule, patternIssue(rule.Name, "command_match", err)))
		}
		rule.Matcher.CommandMatch = p
	}
	if m.PathMatch != "" {
		p, err := domain.CompilePattern(m.PathMatch)
		if err != nil {
			issues = append(issues, disable(&rule, patternIssue(rule.Name, "path_match", err)))
		}
		rule.Matcher.PathMatch = p
	}

	a := entry.Actions
	if a.Block {
		rule.Actions = append(rule.Actions, domain.BlockAction{Reason: a.Reason})
	}
	if a.BlockIfMatch != "" {
		p, err := domain.CompilePattern(a.BlockIfMatch)
		if err != nil {
			issues = append(issues, disable(&rule, patternIssue(rule.Name, "block_if_match", err)))
		} else {
			rule.Actions = append(rule.Actions, domain.BlockIfMatchAction{Pattern: p, Reason: a.Reason})
		}
	}
	if text := nonEmpty(a.Inject); len(text) > 0 {
		rule.Actions = append(rule.Actions, domain.InjectAction{Text: text})
	}
	if a.Run != "" {
		argv, err := shellquote.Split(a.Run)
		if err == nil && len(argv) == 0 {
			err = errors.New("empty command")
		}
		if err != nil {
			issues = append(issues, disable(&rule, patternIssue(rule.Name, "run", err)))
		} else {
			run := domain.RunAction{Source: a.Run, Argv: argv}
			if a.Timeout != nil {
				run.Timeout = time.Duration(*a.Timeout)
			}
			rule.Actions = append(rule.Actions, run)
		}
	}

	if a.IsEmpty() {
		issues = append(issues, warning(rule.Name, "rule has no action; a match only records its name"))
	}
	if rule.Matcher.IsEmpty() && len(m.Events) == 0 {
		issues = append(issues, warning(rule.Name, "rule has no matchers and applies to every event"))
	}
	return rule, issues
}

func disable(rule *domain.Rule, issue domain.ConfigIssue) domain.ConfigIssue {
	rule.Enabled = false
	if rule.DisabledReason == "" || rule.DisabledReason == "disabled in configuration" {
		rule.DisabledReason = issue.Message
	}
	return issue
}

func patternIssue(rule, field string, err error) domain.ConfigIssue {
	if !errors.Is(err, domain.ErrPattern) {
		err = fmt.Errorf("%w: %v", domain.ErrPattern, err)
	}
	return domain.ConfigIssue{
		Severity: domain.SeverityError,
		Rule:     rule,
		Message:  fmt.Sprintf("invalid %s: %v; rule disabled", field, err),
		Err:      err,
	}
}

func warning(rule, msg string) domain.ConfigIssue {
	return domain.ConfigIssue{Severity: domain.SeverityWarning, Rule: rule, Message: msg}
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var _ ports.RuleSetLoader = (*Loader)(nil)
