// Package lint reports rule-set problems that compile cleanly but are almost
// certainly mistakes.
package lint

import (
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/hookgate/internal/domain"
)

// SlowValidatorTimeout is the budget above which a validator is reported;
// the agent waits that long on every matching event.
const SlowValidatorTimeout = time.Minute

// Check returns warning-severity issues for rs. Disabled rules are skipped.
func Check(rs *domain.RuleSet) []domain.ConfigIssue {
	if rs == nil || rs.Fallback {
		return nil
	}
	var issues []domain.ConfigIssue
	issues = append(issues, checkShadowed(rs)...)
	for _, rule := range rs.Rules {
		if !rule.Enabled {
			continue
		}
		issues = append(issues, checkInject(rule, rs.Settings)...)
		issues = append(issues, checkValidator(rule, rs.Settings)...)
	}
	return issues
}

// checkShadowed flags rules that can never run because an earlier rule with
// the same (or an empty) matcher blocks unconditionally.
func checkShadowed(rs *domain.RuleSet) []domain.ConfigIssue {
	var issues []domain.ConfigIssue
	blockers := make(map[string]string)
	catchAll := ""

	for _, rule := range rs.Rules {
		if !rule.Enabled {
			continue
		}
		key := matcherKey(rule.Matcher)
		switch {
		case catchAll != "":
			issues = append(issues, warning(rule.Name, fmt.Sprintf("unreachable: rule %s blocks every event first", catchAll)))
			continue
		case blockers[key] != "":
			issues = append(issues, warning(rule.Name, fmt.Sprintf("unreachable: rule %s has the same matchers and always blocks", blockers[key])))
			continue
		}
		if !blocksUnconditionally(rule) {
			continue
		}
		if rule.Matcher.IsEmpty() {
			catchAll = rule.Name
		}
		blockers[key] = rule.Name
	}
	return issues
}

func checkInject(rule domain.Rule, settings domain.Settings) []domain.ConfigIssue {
	var issues []domain.ConfigIssue
	limit := settings.ContextLimit()
	for _, action := range rule.Actions {
		inject, ok := action.(domain.InjectAction)
		if !ok {
			continue
		}
		size := len(strings.Join(inject.Text, domain.ContextDelimiter))
		if size > limit {
			issues = append(issues, warning(rule.Name, fmt.Sprintf("inject text is %d bytes; max_context_bytes is %d so it is always truncated", size, limit)))
		}
	}
	return issues
}

func checkValidator(rule domain.Rule, settings domain.Settings) []domain.ConfigIssue {
	var issues []domain.ConfigIssue
	for _, action := range rule.Actions {
		run, ok := action.(domain.RunAction)
		if !ok {
			continue
		}
		if timeout := settings.TimeoutFor(run); timeout > SlowValidatorTimeout {
			issues = append(issues, warning(rule.Name, fmt.Sprintf("validator timeout %s delays every matching event", timeout)))
		}
	}
	return issues
}

func blocksUnconditionally(rule domain.Rule) bool {
	for _, action := range rule.Actions {
		if _, ok := action.(domain.BlockAction); ok {
			return true
		}
	}
	return false
}

func matcherKey(m domain.MatcherClause) string {
	events := make([]string, len(m.Events))
	for i, e := range m.Events {
		events[i] = string(e)
	}
	return strings.Join([]string{
		strings.Join(events, ","),
		strings.Join(m.Tools, ","),
		strings.Join(m.Extensions, ","),
		strings.Join(m.Directories, ","),
		m.CommandMatch.Source,
		m.PathMatch.Source,
	}, "\x00")
}

func warning(rule, msg string) domain.ConfigIssue {
	return domain.ConfigIssue{Severity: domain.SeverityWarning, Rule: rule, Message: msg}
}
