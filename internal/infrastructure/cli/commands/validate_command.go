package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/application/lint"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/cli/helpers"
)

// NewValidateCommand loads and compiles a rule document and reports its issues.
func NewValidateCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [rules-file]",
		Short: "Check a rule document for errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := rt.Container(cmd.Context())
			if err != nil {
				return err
			}
			path := container.Config.RulesFile
			if len(args) == 1 {
				path = args[0]
			}
			return validateRules(cmd, container.RuleLoader.Load(path))
		},
	}
}

func validateRules(cmd *cobra.Command, rs *domain.RuleSet) error {
	out := cmd.OutOrStdout()
	styler := helpers.NewStyler(out)

	size := "missing"
	if info, err := os.Stat(rs.Source); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Fprintf(out, "%s (%s)\n", rs.Source, size)
	if rs.Digest != "" {
		fmt.Fprintf(out, "digest: %s\n", rs.Digest)
	}
	fmt.Fprintf(out, "%d rule(s), %d enabled\n", len(rs.Rules), rs.EnabledCount())
	issues := append(append([]domain.ConfigIssue(nil), rs.Issues...), lint.Check(rs)...)
	helpers.RenderIssues(out, styler, issues)

	switch {
	case rs.Fallback:
		return fmt.Errorf("%s: %w", ErrRuleSetUnavailable, firstIssue(rs))
	case rs.HasErrors():
		return fmt.Errorf("%s", ErrRuleSetHasErrors)
	}
	fmt.Fprintln(out, MsgRuleSetValid)
	return nil
}
