package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/hookio"
)

// NewEvalCommand creates the hook entry point: one event on stdin, one
// decision record on stdout.
func NewEvalCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Evaluate one hook event read from stdin",
		Long: `Read one hook event (JSON) from stdin and write the decision
{"continue":bool,"context":string,"reason":string} to stdout.

A record is always written. Undecodable input is answered with a
pass-through decision and a non-zero exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, rt)
		},
	}
}

func runEval(cmd *cobra.Command, rt *Runtime) error {
	out := cmd.OutOrStdout()

	ev, err := hookio.DecodeEvent(cmd.InOrStdin())
	if err != nil {
		return passThrough(out, err)
	}

	container, err := rt.Container(cmd.Context())
	if err != nil {
		return passThrough(out, err)
	}

	decision := container.EvalService.Evaluate(cmd.Context(), ev)
	if err := hookio.EncodeDecision(out, decision); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}

	rs := container.Rules.Current()
	switch {
	case rs.Fallback && !container.Config.FailOpen:
		return fmt.Errorf("%s: %w", ErrRuleSetUnavailable, firstIssue(rs))
	case !rs.Fallback && !(container.Config.FailOpen && rs.Settings.FailOpen):
		if note, ok := firstWarning(decision); ok {
			return fmt.Errorf("%s: %s", note.Rule, note.Message)
		}
	}
	return nil
}

// passThrough answers the host before reporting err.
func passThrough(out io.Writer, err error) error {
	if encErr := hookio.EncodeDecision(out, domain.Allow()); encErr != nil {
		return errors.Join(err, encErr)
	}
	return err
}

func firstWarning(d domain.Decision) (domain.Note, bool) {
	for _, note := range d.Notes {
		if note.Level == domain.NoteWarn {
			return note, true
		}
	}
	return domain.Note{}, false
}

func firstIssue(rs *domain.RuleSet) error {
	for _, issue := range rs.Issues {
		if issue.Err != nil {
			return issue.Err
		}
		return errors.New(issue.Message)
	}
	return domain.ErrConfiguration
}
