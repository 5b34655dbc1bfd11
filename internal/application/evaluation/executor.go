package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// Per-rule results as recorded in audit timings.
const (
	ResultNoMatch  = "no_match"
	ResultDisabled = "disabled"
	ResultBlock    = "block"
	ResultInject   = "inject"
	ResultNoop     = "noop"
	ResultFailOpen = "fail_open"
)

// Partial is what one matched rule contributes to the decision.
type Partial struct {
	Blocked   bool
	Reason    string
	Context   []string
	Notes     []domain.Note
	Validator *domain.ValidatorSummary
	Result    string
	Detail    string
}

// Executor carries out a matched rule's actions. It owns the only
// side-effecting path of an evaluation: validator subprocesses.
type Executor struct {
	Runner  ports.ValidatorRunner
	Metrics ports.MetricsRecorder
}

// Execute runs the rule's actions in order. A block ends the rule; later
// actions of the same rule are not executed.
func (x *Executor) Execute(ctx context.Context, rule domain.Rule, ev domain.Event, settings domain.Settings) Partial {
	var p Partial
	var details []string

	for _, action := range rule.Actions {
		switch a := action.(type) {
		case domain.BlockAction:
			p.Blocked = true
			p.Reason = blockReason(rule, a.Reason)
			details = append(details, "block")

		case domain.BlockIfMatchAction:
			target := ev.ScanTarget()
			if target != "" && a.Pattern.MatchString(target) {
				p.Blocked = true
				p.Reason = blockReason(rule, a.Reason)
				details = append(details, "block_if_match matched "+a.Pattern.Source)
			} else {
				details = append(details, "block_if_match did not match")
			}

		case domain.InjectAction:
			for _, text := range a.Text {
				if text != "" {
					p.Context = append(p.Context, text)
				}
			}
			details = append(details, fmt.Sprintf("inject %d fragment(s)", len(a.Text)))

		case domain.RunAction:
			details = append(details, x.run(ctx, rule, a, ev, settings, &p))
		}

		if p.Blocked {
			p.Context = nil
			break
		}
	}

	switch {
	case p.Blocked:
		p.Result = ResultBlock
	case len(p.Context) > 0:
		p.Result = ResultInject
	case p.Validator != nil && p.Validator.Status.InfrastructureFailure():
		p.Result = ResultFailOpen
	default:
		p.Result = ResultNoop
	}
	p.Detail = strings.Join(details, "; ")
	return p
}

func (x *Executor) run(ctx context.Context, rule domain.Rule, action domain.RunAction, ev domain.Event, settings domain.Settings, p *Partial) string {
	var res domain.ValidatorResult
	if x.Runner == nil {
		res = domain.ValidatorResult{
			Status:   domain.ValidatorSpawnError,
			ExitCode: -1,
			Err:      fmt.Errorf("%w: no validator runner configured", domain.ErrValidator),
		}
	} else {
		res = x.Runner.Run(ctx, domain.ValidatorRequest{
			Rule:    rule.Name,
			Argv:    action.Argv,
			Timeout: settings.TimeoutFor(action),
			Event:   ev,
		})
	}
	if x.Metrics != nil {
		x.Metrics.ObserveValidator(res.Status)
	}
	p.Validator = res.Summary(action.Argv)

	switch {
	case res.Status.Blocks():
		p.Blocked = true
		p.Reason = res.Stderr
		if p.Reason == "" {
			p.Reason = fmt.Sprintf("Blocked by rule '%s': validator exited with status %d", rule.Name, res.ExitCode)
		}
		return fmt.Sprintf("run %s exited %d", action.Source, res.ExitCode)

	case res.Status.InfrastructureFailure():
		msg := fmt.Sprintf("validator %s %s, continuing", action.Source, res.Status)
		if res.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, res.Err)
		}
		p.Notes = append(p.Notes, domain.Note{Level: domain.NoteWarn, Rule: rule.Name, Message: msg})
		return fmt.Sprintf("run %s %s (fail-open)", action.Source, res.Status)

	default:
		if res.Stdout != "" {
			p.Context = append(p.Context, res.Stdout)
		}
		return fmt.Sprintf("run %s passed", action.Source)
	}
}

func blockReason(rule domain.Rule, reason string) string {
	if reason != "" {
		return reason
	}
	if rule.Description != "" {
		return fmt.Sprintf("Blocked by rule '%s': %s", rule.Name, rule.Description)
	}
	return fmt.Sprintf("Blocked by rule '%s'", rule.Name)
}
