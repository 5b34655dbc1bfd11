package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/cli/helpers"
	"github.com/doeshing/hookgate/internal/infrastructure/hookio"
)

type debugOptions struct {
	event   domain.Event
	input   string
	asJSON  bool
	noTrace bool
}

// debugReport is the --json form of a simulated evaluation.
type debugReport struct {
	Event    domain.Event            `json:"event"`
	Decision domain.Decision         `json:"decision"`
	Trace    []domain.RuleEvaluation `json:"trace"`
}

// NewDebugCommand creates the simulate command. Nothing is written to the
// audit stream; validators still run.
func NewDebugCommand(rt *Runtime) *cobra.Command {
	var opts debugOptions

	cmd := &cobra.Command{
		Use:   "debug [event-kind]",
		Short: "Simulate an event and show the per-rule trace",
		Example: `  hookgate debug PreToolUse --tool Bash --command "git push --force"
  hookgate debug --input event.json --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := opts.resolveEvent(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runDebug(cmd, rt, ev, opts)
		},
	}

	cmd.Flags().StringVar(&opts.event.Tool, "tool", "", "Tool name (Bash, Write, Edit, ...)")
	cmd.Flags().StringVar(&opts.event.Command, "command", "", "Shell command of a Bash tool call")
	cmd.Flags().StringVar(&opts.event.Path, "path", "", "Target file path")
	cmd.Flags().StringVar(&opts.event.Content, "content", "", "Content being written or prompt text")
	cmd.Flags().StringVar(&opts.event.SessionID, "session", "", "Session identifier")
	cmd.Flags().StringVar(&opts.event.Cwd, "cwd", "", "Working directory passed to validators")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Read a hook record from a file (- for stdin)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the decision and trace as JSON")
	cmd.Flags().BoolVar(&opts.noTrace, "no-trace", false, "Omit the per-rule trace from text output")
	return cmd
}

func (o debugOptions) resolveEvent(stdin io.Reader, args []string) (domain.Event, error) {
	if o.input != "" {
		return readEventFile(stdin, o.input)
	}
	if len(args) == 0 {
		return domain.Event{}, fmt.Errorf("%s", ErrEventKindRequired)
	}
	kind, err := domain.ParseEventKind(args[0])
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	ev := o.event
	ev.Kind = kind
	if ev.Cwd == "" {
		ev.Cwd, _ = os.Getwd()
	}
	return ev, nil
}

func readEventFile(stdin io.Reader, path string) (domain.Event, error) {
	if path == "-" {
		return hookio.DecodeEvent(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Event{}, fmt.Errorf("open event: %w", err)
	}
	defer f.Close()
	return hookio.DecodeEvent(f)
}

func runDebug(cmd *cobra.Command, rt *Runtime, ev domain.Event, opts debugOptions) error {
	container, err := rt.Container(cmd.Context())
	if err != nil {
		return err
	}

	decision, trace := container.EvalService.Simulate(cmd.Context(), ev)
	out := cmd.OutOrStdout()

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(debugReport{Event: ev, Decision: decision, Trace: trace})
	}

	styler := helpers.NewStyler(out)
	rs := container.Rules.Current()
	fmt.Fprintf(out, "Rule set: %s (%d of %d rule(s) enabled)\n", rs.Source, rs.EnabledCount(), len(rs.Rules))
	fmt.Fprintf(out, "Event: %s %s\n\n", ev.Kind, describeEvent(ev))
	helpers.RenderDecision(out, styler, decision)
	if !opts.noTrace {
		helpers.RenderTrace(out, styler, trace)
	}
	return nil
}

func describeEvent(ev domain.Event) string {
	switch {
	case ev.Command != "":
		return fmt.Sprintf("%s: %s", ev.Tool, ev.Command)
	case ev.Path != "":
		return fmt.Sprintf("%s: %s", ev.Tool, ev.Path)
	default:
		return ev.Tool
	}
}
