package cli

import (
	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/app"
	"github.com/doeshing/hookgate/internal/infrastructure/cli/commands"
	"github.com/doeshing/hookgate/internal/infrastructure/config"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	// ConfigFile overrides the runtime config location (mainly for tests).
	ConfigFile string
}

// persistentFlag maps a root flag onto a runtime config key.
type persistentFlag struct {
	key  string
	name string
}

var boundFlags = []persistentFlag{
	{key: "rules", name: "rules"},
	{key: "fail_open", name: "fail-open"},
	{key: "log.level", name: "log-level"},
	{key: "log.format", name: "log-format"},
	{key: "audit.log", name: "audit-log"},
	{key: "audit.disabled", name: "no-audit"},
	{key: "audit.index", name: "audit-index"},
	{key: "audit.index_enabled", name: "index"},
	{key: "metrics.textfile", name: "metrics-textfile"},
}

// NewRootCmd wires the cobra root command. The returned runtime owns the
// container built by subcommands; the caller closes it after Execute.
func NewRootCmd(opts Options) (*cobra.Command, *commands.Runtime, error) {
	loader := config.NewLoader(opts.ConfigFile)
	rt := commands.NewRuntime(loader, app.Options{Verbose: opts.Verbose})

	root := &cobra.Command{
		Use:   "hookgate",
		Short: "hookgate - policy engine for coding-agent hooks",
		Long: `hookgate evaluates coding-agent hook events against a YAML rule set and
answers allow, block (with a reason) or allow with injected context.

Register "hookgate eval" as a command hook; every decision is appended to
an audit stream that "hookgate audit" can query.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&loader.ConfigPath, "config", opts.ConfigFile, "Runtime config file (default ~/.hookgate/config.yaml)")
	flags.String("rules", "", "Rule document (default .claude/hookgate.yaml, then ~/.hookgate/hooks.yaml)")
	flags.Bool("fail-open", true, "Exit zero when the rule set cannot be loaded")
	flags.String("log-level", "warn", "Diagnostic log level (debug|info|warn|error)")
	flags.String("log-format", "console", "Diagnostic log format (console|json)")
	flags.String("audit-log", "", "Audit stream path (JSON lines)")
	flags.Bool("no-audit", false, "Do not record decisions")
	flags.String("audit-index", "", "SQLite audit index path")
	flags.Bool("index", false, "Also record decisions in the SQLite audit index")
	flags.String("metrics-textfile", "", "Write prometheus metrics to this file on exit")

	for _, f := range boundFlags {
		if err := loader.BindFlag(f.key, flags.Lookup(f.name)); err != nil {
			return nil, nil, err
		}
	}

	root.AddCommand(
		commands.NewEvalCommand(rt),
		commands.NewDebugCommand(rt),
		commands.NewValidateCommand(rt),
		commands.NewAuditCommand(rt),
		commands.NewBatchCommand(rt),
		commands.NewServeCommand(rt),
		commands.NewDoctorCommand(rt),
		commands.NewConfigCommand(rt),
		commands.NewInitCommand(rt),
		commands.NewInstallCommand(rt),
		commands.NewUninstallCommand(rt),
		commands.NewVersionCommand(),
	)
	return root, rt, nil
}
