package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/domain"
)

type installOptions struct {
	project bool
	force   bool
	events  []string
	command string
}

func (o installOptions) scope() domain.IntegrationScope {
	if o.project {
		return domain.ScopeProject
	}
	return domain.ScopeUser
}

// NewInstallCommand registers hookgate in the coding agent's settings.json
func NewInstallCommand(rt *Runtime) *cobra.Command {
	var opts installOptions
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register 'hookgate eval' as a command hook",
		Long: `Add a command hook running 'hookgate eval' to ~/.claude/settings.json
(or .claude/settings.json with --project). Other settings and hooks are kept;
the previous file is saved with a .bak suffix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := parseEvents(opts.events)
			if err != nil {
				return err
			}
			container, err := rt.Container(cmd.Context())
			if err != nil {
				return err
			}
			if opts.command != "" {
				container.Installer.Command = opts.command
			}
			res, err := container.Installer.Install(opts.scope(), events, opts.force)
			if err != nil {
				return err
			}
			displayIntegrationResult(cmd.OutOrStdout(), "Registered", res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.project, "project", false, "Edit the project settings instead of the user settings")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Rewrite existing hookgate entries")
	cmd.Flags().StringSliceVar(&opts.events, "events", nil, "Events to gate (default PreToolUse,PostToolUse,UserPromptSubmit)")
	cmd.Flags().StringVar(&opts.command, "hook-command", "", "Hook command to register (default \"hookgate eval\")")
	return cmd
}

// NewUninstallCommand removes hookgate entries from the settings file
func NewUninstallCommand(rt *Runtime) *cobra.Command {
	var opts installOptions
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove hookgate command hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := rt.Container(cmd.Context())
			if err != nil {
				return err
			}
			if opts.command != "" {
				container.Installer.Command = opts.command
			}
			res, err := container.Installer.Uninstall(opts.scope())
			if err != nil {
				return err
			}
			displayIntegrationResult(cmd.OutOrStdout(), "Removed", res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.project, "project", false, "Edit the project settings instead of the user settings")
	cmd.Flags().StringVar(&opts.command, "hook-command", "", "Hook command to remove (default \"hookgate eval\")")
	return cmd
}

func parseEvents(values []string) ([]domain.EventKind, error) {
	events := make([]domain.EventKind, 0, len(values))
	for _, v := range values {
		kind, err := domain.ParseEventKind(v)
		if err != nil {
			return nil, err
		}
		events = append(events, kind)
	}
	return events, nil
}

func displayIntegrationResult(out io.Writer, verb string, res domain.IntegrationResult) {
	fmt.Fprintf(out, "Settings: %s\n", res.SettingsFile)
	if len(res.Changed) == 0 {
		fmt.Fprintln(out, "No changes.")
	} else {
		fmt.Fprintf(out, "%s %q for: %s\n", verb, res.Command, joinEvents(res.Changed))
	}
	if len(res.Unchanged) > 0 {
		fmt.Fprintf(out, "Already registered: %s (use --force to rewrite)\n", joinEvents(res.Unchanged))
	}
	if res.BackupFile != "" {
		fmt.Fprintf(out, "Backup: %s\n", res.BackupFile)
	}
}

func joinEvents(events []domain.EventKind) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
