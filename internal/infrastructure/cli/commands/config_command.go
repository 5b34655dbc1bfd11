package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/config"
	"github.com/doeshing/hookgate/internal/pkg/filesystem"
)

const (
	envKeyEditor  = "EDITOR"
	defaultEditor = "vi"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(rt *Runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect hookgate runtime configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd, rt)
		},
	}

	configCmd.AddCommand(
		newConfigShowCommand(rt),
		newConfigDiffCommand(rt),
		newConfigEditCommand(rt),
	)
	return configCmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd, rt)
		},
	}
}

// newConfigDiffCommand creates the 'config diff' subcommand
func newConfigDiffCommand(rt *Runtime) *cobra.Command {
	var keysOnly bool
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show differences from the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.Loader.Load(cmd.Context())
			if err != nil {
				return err
			}
			return showConfigurationDiff(cmd.OutOrStdout(), cfg, keysOnly)
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys", false, "Only list the changed keys with their default and current values")
	return cmd
}

// newConfigEditCommand creates the 'config edit' subcommand
func newConfigEditCommand(rt *Runtime) *cobra.Command {
	var rules bool
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the config file (or the rule document) in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rt.Loader.ConfigFile()
			if rules {
				cfg, err := rt.Loader.Load(cmd.Context())
				if err != nil {
					return err
				}
				path = cfg.RulesFile
			}
			return editInEditor(path)
		},
	}
	cmd.Flags().BoolVar(&rules, "rules", false, "Edit the rule document instead of the config file")
	return cmd
}

// showConfiguration prints the effective configuration as YAML
func showConfiguration(cmd *cobra.Command, rt *Runtime) error {
	cfg, err := rt.Loader.Load(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := rt.Loader.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# config file: (none, defaults and environment only)")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	return enc.Close()
}

// showConfigurationDiff compares cfg with the defaults
func showConfigurationDiff(out io.Writer, cfg domain.Config, keysOnly bool) error {
	defaults := config.DefaultConfig()
	defaults.RulesFile = config.DefaultRulesPath()

	changes := changedKeys(defaults, cfg)
	if len(changes) == 0 {
		fmt.Fprintln(out, MsgNoDifferencesFromDefault)
		return nil
	}
	for _, c := range changes {
		fmt.Fprintf(out, "%s: %v -> %v\n", c.Key, c.From, c.To)
	}
	if !keysOnly {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cmp.Diff(defaults, cfg))
	}
	return nil
}

// keyChange is one config key whose value differs from its default.
type keyChange struct {
	Key      string
	From, To interface{}
}

// keyReporter is a cmp.Reporter that records differing leaves by their
// config key (the yaml tags along the path).
type keyReporter struct {
	path    cmp.Path
	changes []keyChange
}

func (r *keyReporter) PushStep(ps cmp.PathStep) { r.path = append(r.path, ps) }

func (r *keyReporter) PopStep() { r.path = r.path[:len(r.path)-1] }

func (r *keyReporter) Report(res cmp.Result) {
	if res.Equal() {
		return
	}
	from, to := r.path.Last().Values()
	r.changes = append(r.changes, keyChange{Key: configKey(r.path), From: interfaceOf(from), To: interfaceOf(to)})
}

func changedKeys(defaults, cfg domain.Config) []keyChange {
	var r keyReporter
	cmp.Equal(defaults, cfg, cmp.Reporter(&r))
	return r.changes
}

func configKey(path cmp.Path) string {
	var parts []string
	for i, step := range path {
		field, ok := step.(cmp.StructField)
		if !ok || i == 0 {
			continue
		}
		name := field.Name()
		if parent := path[i-1].Type(); parent.Kind() == reflect.Struct {
			if tag := strings.Split(parent.Field(field.Index()).Tag.Get("yaml"), ",")[0]; tag != "" {
				name = tag
			}
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ".")
}

func interfaceOf(v reflect.Value) interface{} {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// editInEditor opens path in the user's editor, creating its directory first
func editInEditor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	editorCommand := getEditorCommand()
	cmd := exec.Command(editorCommand, filesystem.ExpandPath(path))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor %s: %w", editorCommand, err)
	}
	return nil
}

func getEditorCommand() string {
	if editor := os.Getenv(envKeyEditor); editor != "" {
		return editor
	}
	return defaultEditor
}
