package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/assets"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/cli/helpers"
	"github.com/doeshing/hookgate/internal/infrastructure/config"
	"github.com/doeshing/hookgate/internal/pkg/filesystem"
)

const (
	msgInitCancelled = "Init cancelled."
	backupSuffix     = ".bak"
)

// NewInitCommand creates the init command, which writes the starter rule document.
func NewInitCommand(rt *Runtime) *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter rule document",
		Long: `Write the starter rule document to the configured rules path
(~/.hookgate/hooks.yaml unless overridden), to .claude/hookgate.yaml with
--project, or to an explicit path.

Then register "hookgate eval" as a command hook for the events you want
gated, and run 'hookgate validate' after editing the rules.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initTargetPath(cmd, rt, args, project)
			if err != nil {
				return err
			}
			return writeStarterRules(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing document without prompting")
	cmd.Flags().BoolVar(&project, "project", false, "Write the project document "+config.ProjectRulesFile)
	return cmd
}

func initTargetPath(cmd *cobra.Command, rt *Runtime, args []string, project bool) (string, error) {
	switch {
	case len(args) == 1:
		return filesystem.ExpandPath(args[0]), nil
	case project:
		return filepath.Abs(config.ProjectRulesFile)
	}
	cfg, err := rt.Loader.Load(cmd.Context())
	if err != nil {
		return "", err
	}
	return cfg.RulesFile, nil
}

func writeStarterRules(cmd *cobra.Command, path string, force bool) error {
	out := cmd.OutOrStdout()

	if filesystem.Exists(path) && !force {
		reader := bufio.NewReader(cmd.InOrStdin())
		if !helpers.PromptForYesNo(out, reader, fmt.Sprintf("%s exists. Overwrite?", path), false) {
			fmt.Fprintln(out, msgInitCancelled)
			return nil
		}
	}

	if err := backupExisting(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, assets.DefaultRulesYAML, domain.RulesFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(out, MsgRulesFileWritten, path)
	return nil
}

// backupExisting keeps the previous document next to the new one.
func backupExisting(path string) error {
	if !filesystem.Exists(path) {
		return nil
	}
	if err := os.Rename(path, path+backupSuffix); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}
