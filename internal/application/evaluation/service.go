// Package evaluation turns one event into one decision.
//
// Rules are visited in declared order. Disabled rules are skipped, a block is
// terminal, and injected context is aggregated in rule order. Live evaluation
// and simulation share the same loop; simulation only adds a trace and skips
// the audit log.
package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/doeshing/hookgate/internal/application/matcher"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// Service orchestrates the evaluation lifecycle end-to-end.
type Service struct {
	Rules    ports.RuleSetProvider
	Executor *Executor
	Audit    ports.AuditLogger
	Metrics  ports.MetricsRecorder
	Logger   ports.Logger

	// Now is the clock used for audit timestamps; defaults to time.Now.
	Now func() time.Time
}

// Evaluate produces the decision for ev and hands an audit record to the
// logger. A record the logger had to drop becomes a warning note.
func (s *Service) Evaluate(ctx context.Context, ev domain.Event) domain.Decision {
	decision, entry := s.evaluate(ctx, ev, nil, true)
	if s.Audit != nil {
		if err := s.Audit.Log(entry); err != nil {
			notes := make([]domain.Note, 0, len(decision.Notes)+1)
			notes = append(notes, decision.Notes...)
			decision.Notes = append(notes, domain.Note{
				Level:   domain.NoteWarn,
				Message: "audit record not written: " + err.Error(),
			})
		}
	}
	return decision
}

// Simulate evaluates ev exactly like Evaluate, including validators, and
// returns the per-rule trace. Nothing is written to the audit log.
func (s *Service) Simulate(ctx context.Context, ev domain.Event) (domain.Decision, []domain.RuleEvaluation) {
	trace := NewTraceCollector()
	decision, _ := s.evaluate(ctx, ev, trace, false)
	return decision, trace.Entries()
}

func (s *Service) evaluate(ctx context.Context, ev domain.Event, trace *TraceCollector, record bool) (domain.Decision, domain.LogEntry) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	rs := s.ruleSet()
	settings := rs.Settings
	decision := domain.Allow()
	timings := make([]domain.RuleTiming, 0, len(rs.Rules))
	var fragments []string

	if rs.Fallback {
		decision.Notes = append(decision.Notes, domain.Note{
			Level:   domain.NoteWarn,
			Message: fallbackMessage(rs),
		})
	}

	for _, rule := range rs.Rules {
		ruleStart := time.Now()
		if !rule.Enabled {
			timings = append(timings, domain.RuleTiming{Name: rule.Name, Result: ResultDisabled})
			trace.Record(domain.RuleEvaluation{Rule: rule.Name, Detail: disabledDetail(rule)})
			continue
		}

		match := matcher.Evaluate(rule.Matcher, ev)
		if !match.Matched {
			elapsed := time.Since(ruleStart)
			timings = append(timings, domain.RuleTiming{
				Name:          rule.Name,
				Result:        ResultNoMatch,
				ElapsedMicros: elapsed.Microseconds(),
			})
			trace.Record(domain.RuleEvaluation{
				Rule:    rule.Name,
				Elapsed: elapsed,
				Pattern: match.Pattern(),
				Input:   match.Input(),
				Detail:  match.Detail,
			})
			continue
		}

		if record && s.Metrics != nil {
			s.Metrics.ObserveRuleMatch(rule.Name)
		}
		decision.MatchedRules = append(decision.MatchedRules, rule.Name)

		partial := s.executor(record).Execute(ctx, rule, ev, settings)
		elapsed := time.Since(ruleStart)
		decision.Notes = append(decision.Notes, partial.Notes...)
		timings = append(timings, domain.RuleTiming{
			Name:          rule.Name,
			Matched:       true,
			Actions:       rule.ActionKinds(),
			Result:        partial.Result,
			ElapsedMicros: elapsed.Microseconds(),
			Validator:     partial.Validator,
		})
		trace.Record(domain.RuleEvaluation{
			Rule:    rule.Name,
			Matched: true,
			Elapsed: elapsed,
			Pattern: match.Pattern(),
			Input:   match.Input(),
			Detail:  match.Detail + "; " + partial.Detail,
		})

		if partial.Blocked {
			decision.Continue = false
			decision.Reason = partial.Reason
			fragments = nil
			break
		}
		fragments = append(fragments, partial.Context...)
	}

	if decision.Continue && len(fragments) > 0 {
		decision.Context, decision.Truncated = truncateContext(
			strings.Join(fragments, domain.ContextDelimiter),
			settings.ContextLimit(),
		)
		if decision.Truncated {
			decision.Notes = append(decision.Notes, domain.Note{
				Level:   domain.NoteInfo,
				Message: fmt.Sprintf("injected context truncated to %d bytes", settings.ContextLimit()),
			})
		}
	}

	elapsed := time.Since(start)
	if record && s.Metrics != nil {
		s.Metrics.ObserveDecision(decision.Outcome(), elapsed)
	}
	if decision.Blocked() && s.Logger != nil {
		s.Logger.Info("event blocked", map[string]interface{}{
			"event":  string(ev.Kind),
			"tool":   ev.Tool,
			"rules":  decision.MatchedRules,
			"reason": decision.Reason,
		})
	}

	return decision, s.entry(ev, rs, decision, timings, elapsed)
}

func (s *Service) ruleSet() *domain.RuleSet {
	if s.Rules != nil {
		if rs := s.Rules.Current(); rs != nil {
			return rs
		}
	}
	return domain.EmptyRuleSet("")
}

// executor returns the configured executor; simulation passes never feed
// validator metrics.
func (s *Service) executor(record bool) *Executor {
	x := s.Executor
	if x == nil {
		x = &Executor{}
	}
	if !record && x.Metrics != nil {
		return &Executor{Runner: x.Runner}
	}
	return x
}

func (s *Service) entry(ev domain.Event, rs *domain.RuleSet, d domain.Decision, timings []domain.RuleTiming, elapsed time.Duration) domain.LogEntry {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	matched := make([]string, len(d.MatchedRules))
	copy(matched, d.MatchedRules)
	return domain.LogEntry{
		ID:             uuid.NewString(),
		Timestamp:      now().UTC(),
		SessionID:      ev.SessionID,
		Event:          ev.Kind,
		Tool:           ev.Tool,
		Command:        truncateField(ev.Command),
		Path:           truncateField(ev.Path),
		Outcome:        d.Outcome(),
		Reason:         d.Reason,
		ContextBytes:   len(d.Context),
		Truncated:      d.Truncated,
		MatchedRules:   matched,
		Rules:          timings,
		Notes:          d.Notes,
		RuleSet:        rs.Provenance(),
		DurationMicros: elapsed.Microseconds(),
	}
}

func fallbackMessage(rs *domain.RuleSet) string {
	msg := "rule set unavailable, allowing every event"
	if len(rs.Issues) > 0 {
		msg += ": " + rs.Issues[0].Message
	}
	return msg
}

func disabledDetail(rule domain.Rule) string {
	if rule.DisabledReason != "" {
		return "disabled: " + rule.DisabledReason
	}
	return "disabled"
}

// truncateContext cuts s to limit bytes on a rune boundary and appends a note.
func truncateContext(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	cut := cutRunes(s, limit)
	return cut + fmt.Sprintf("%s[hookgate: context truncated, %d of %d bytes shown]", domain.ContextDelimiter, len(cut), len(s)), true
}

func truncateField(s string) string {
	if len(s) <= domain.MaxAuditFieldBytes {
		return s
	}
	return cutRunes(s, domain.MaxAuditFieldBytes) + "..."
}

func cutRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
