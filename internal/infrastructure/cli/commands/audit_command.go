package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/audit"
	"github.com/doeshing/hookgate/internal/infrastructure/cli/helpers"
)

type auditOptions struct {
	limit  int
	asJSON bool
}

// NewAuditCommand creates the audit command with all subcommands
func NewAuditCommand(rt *Runtime) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the decision audit stream",
	}

	auditCmd.AddCommand(
		newAuditRuleCommand(rt),
		newAuditSessionCommand(rt),
		newAuditTailCommand(rt),
		newAuditStatsCommand(rt),
		newAuditVerifyCommand(rt),
	)
	return auditCmd
}

func (o *auditOptions) bind(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().IntVarP(&o.limit, "limit", "n", defaultLimit, "Max entries to show (most recent)")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print entries as JSON lines")
}

// newAuditRuleCommand creates the 'audit rule' subcommand
func newAuditRuleCommand(rt *Runtime) *cobra.Command {
	var opts auditOptions
	cmd := &cobra.Command{
		Use:   "rule <name>",
		Short: "Show decisions in which a rule matched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryAudit(cmd, rt, domain.AuditQuery{Rule: args[0], Limit: opts.limit}, opts)
		},
	}
	opts.bind(cmd, DefaultAuditLimit)
	return cmd
}

// newAuditSessionCommand creates the 'audit session' subcommand
func newAuditSessionCommand(rt *Runtime) *cobra.Command {
	var opts auditOptions
	cmd := &cobra.Command{
		Use:   "session <id>",
		Short: "Show the full decision trace of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryAudit(cmd, rt, domain.AuditQuery{SessionID: args[0], Limit: opts.limit}, opts)
		},
	}
	opts.bind(cmd, DefaultSessionLimit)
	return cmd
}

// newAuditTailCommand creates the 'audit tail' subcommand
func newAuditTailCommand(rt *Runtime) *cobra.Command {
	var opts auditOptions
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryAudit(cmd, rt, domain.AuditQuery{Limit: opts.limit}, opts)
		},
	}
	opts.bind(cmd, DefaultAuditLimit)
	return cmd
}

// newAuditStatsCommand creates the 'audit stats' subcommand
func newAuditStatsCommand(rt *Runtime) *cobra.Command {
	var (
		window int
		top    int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize outcomes and the most frequently matched rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readAudit(cmd, rt, domain.AuditQuery{Limit: window})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, MsgNoAuditEntries)
				return nil
			}
			summary := helpers.SummarizeEntries(entries)
			helpers.RenderSummary(out, helpers.NewStyler(out), summary, helpers.CalculateTopRules(summary.Rules, top))
			return nil
		},
	}
	cmd.Flags().IntVar(&window, "window", 1000, "Number of recent entries to summarize")
	cmd.Flags().IntVar(&top, "top", DefaultTopRules, "Number of rules to rank")
	return cmd
}

// newAuditVerifyCommand creates the 'audit verify' subcommand
func newAuditVerifyCommand(rt *Runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify [audit-file]",
		Short: "Check the hash chain of the audit stream",
		Long: `Recompute the hash of every record and check that each one links to the
record before it. An edited, reordered or removed record breaks the chain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				container, err := rt.Container(cmd.Context())
				if err != nil {
					return err
				}
				if container.AuditStore == nil {
					return fmt.Errorf("%s", ErrAuditReaderUnavailable)
				}
				path = container.AuditStore.Path()
			}
			report, err := audit.VerifyChain(cmd.Context(), path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(out).Encode(report); err != nil {
					return err
				}
			} else {
				helpers.RenderChainReport(out, helpers.NewStyler(out), report)
			}
			if !report.Intact() {
				return fmt.Errorf(ErrAuditChainBroken, len(report.Breaks))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func readAudit(cmd *cobra.Command, rt *Runtime, q domain.AuditQuery) ([]domain.LogEntry, error) {
	container, err := rt.Container(cmd.Context())
	if err != nil {
		return nil, err
	}
	if container.AuditReader == nil {
		return nil, fmt.Errorf("%s", ErrAuditReaderUnavailable)
	}
	return container.AuditReader.Query(cmd.Context(), q)
}

func queryAudit(cmd *cobra.Command, rt *Runtime, q domain.AuditQuery, opts auditOptions) error {
	entries, err := readAudit(cmd, rt, q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeEntries(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, MsgNoAuditEntries)
		return nil
	}
	helpers.RenderEntries(out, helpers.NewStyler(out), entries)
	return nil
}

func writeEntries(out io.Writer, entries []domain.LogEntry) error {
	enc := json.NewEncoder(out)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}
