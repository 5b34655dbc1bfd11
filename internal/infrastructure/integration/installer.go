// Package integration registers hookgate as a command hook in the coding
// agent's settings.json.
package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/filesystem"
	"github.com/doeshing/hookgate/internal/ports"
)

// DefaultCommand is the hook command written into the settings file.
const DefaultCommand = "hookgate eval"

// DefaultEvents are registered when the caller names none.
var DefaultEvents = []domain.EventKind{
	domain.EventPreToolUse,
	domain.EventPostToolUse,
	domain.EventUserPromptSubmit,
}

const backupSuffix = ".bak"

// hookGroup is one matcher group under hooks.<Event> in settings.json.
type hookGroup struct {
	Matcher string        `json:"matcher,omitempty"`
	Hooks   []hookCommand `json:"hooks"`
}

type hookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// Installer edits the host settings file. Unknown keys are preserved.
type Installer struct {
	logger  ports.Logger
	Command string
	// ProjectDir anchors the project scope; empty means the working directory.
	ProjectDir string
}

// NewInstaller builds an installer writing DefaultCommand.
func NewInstaller(logger ports.Logger) *Installer {
	return &Installer{logger: logger, Command: DefaultCommand}
}

// SettingsPath returns the settings file for scope.
func (i *Installer) SettingsPath(scope domain.IntegrationScope) string {
	if scope == domain.ScopeProject {
		dir := i.ProjectDir
		if dir == "" {
			dir = "."
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		return filepath.Join(dir, ".claude", "settings.json")
	}
	return filepath.Join(filesystem.UserHomeDir(), ".claude", "settings.json")
}

// Install adds a hook group running the command for each event. With force,
// existing hookgate groups are rewritten (for example after changing Command).
func (i *Installer) Install(scope domain.IntegrationScope, events []domain.EventKind, force bool) (domain.IntegrationResult, error) {
	if len(events) == 0 {
		events = DefaultEvents
	}
	path := i.SettingsPath(scope)
	result := domain.IntegrationResult{Scope: scope, SettingsFile: path, Command: i.Command}

	settings, err := readSettings(path)
	if err != nil {
		return result, err
	}
	hooks, err := hooksSection(settings)
	if err != nil {
		return result, err
	}

	for _, event := range events {
		groups, err := decodeGroups(hooks[string(event)])
		if err != nil {
			return result, fmt.Errorf("%s: hooks.%s: %w", path, event, err)
		}
		if containsCommand(groups, i.Command) && !force {
			result.Unchanged = append(result.Unchanged, event)
			continue
		}
		groups = append(withoutHookgate(groups, i.Command), hookGroup{
			Matcher: matcherFor(event),
			Hooks:   []hookCommand{{Type: "command", Command: i.Command}},
		})
		if hooks[string(event)], err = json.Marshal(groups); err != nil {
			return result, err
		}
		result.Changed = append(result.Changed, event)
	}

	if len(result.Changed) == 0 {
		return result, nil
	}
	if result.BackupFile, err = i.write(path, settings, hooks); err != nil {
		return result, err
	}
	return result, nil
}

// Uninstall removes hook groups running the command from every event.
func (i *Installer) Uninstall(scope domain.IntegrationScope) (domain.IntegrationResult, error) {
	path := i.SettingsPath(scope)
	result := domain.IntegrationResult{Scope: scope, SettingsFile: path, Command: i.Command}

	if !filesystem.Exists(path) {
		return result, nil
	}
	settings, err := readSettings(path)
	if err != nil {
		return result, err
	}
	hooks, err := hooksSection(settings)
	if err != nil {
		return result, err
	}

	for name, raw := range hooks {
		groups, err := decodeGroups(raw)
		if err != nil || !containsCommand(groups, i.Command) {
			continue
		}
		remaining := withoutHookgate(groups, i.Command)
		if len(remaining) == 0 {
			delete(hooks, name)
		} else if hooks[name], err = json.Marshal(remaining); err != nil {
			return result, err
		}
		result.Changed = append(result.Changed, domain.EventKind(name))
	}

	if len(result.Changed) == 0 {
		return result, nil
	}
	if result.BackupFile, err = i.write(path, settings, hooks); err != nil {
		return result, err
	}
	return result, nil
}

// Status reports which events route to the command.
func (i *Installer) Status(scope domain.IntegrationScope) domain.IntegrationStatus {
	path := i.SettingsPath(scope)
	status := domain.IntegrationStatus{Scope: scope, SettingsFile: path}
	if !filesystem.Exists(path) {
		return status
	}
	status.Exists = true

	settings, err := readSettings(path)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	hooks, err := hooksSection(settings)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	for _, event := range domain.EventKinds {
		groups, err := decodeGroups(hooks[string(event)])
		if err == nil && containsCommand(groups, i.Command) {
			status.Registered = append(status.Registered, event)
		}
	}
	return status
}

func (i *Installer) write(path string, settings, hooks map[string]json.RawMessage) (string, error) {
	if len(hooks) == 0 {
		delete(settings, "hooks")
	} else {
		raw, err := json.Marshal(hooks)
		if err != nil {
			return "", err
		}
		settings["hooks"] = raw
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return "", err
	}
	pretty.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return "", err
	}
	backup, err := backupSettings(path)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, pretty.Bytes(), domain.RulesFilePermissions); err != nil {
		return backup, err
	}
	i.logger.Info("host settings updated", map[string]interface{}{"path": path, "backup": backup})
	return backup, nil
}

func readSettings(path string) (map[string]json.RawMessage, error) {
	settings := make(map[string]json.RawMessage)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, path, err)
	}
	return settings, nil
}

func hooksSection(settings map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	hooks := make(map[string]json.RawMessage)
	raw, ok := settings["hooks"]
	if !ok || string(raw) == "null" {
		return hooks, nil
	}
	if err := json.Unmarshal(raw, &hooks); err != nil {
		return nil, fmt.Errorf("%w: hooks: %v", domain.ErrConfiguration, err)
	}
	return hooks, nil
}

func decodeGroups(raw json.RawMessage) ([]hookGroup, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var groups []hookGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func containsCommand(groups []hookGroup, command string) bool {
	for _, g := range groups {
		for _, h := range g.Hooks {
			if h.Command == command {
				return true
			}
		}
	}
	return false
}

// withoutHookgate drops hook entries running command, and groups left empty.
func withoutHookgate(groups []hookGroup, command string) []hookGroup {
	out := make([]hookGroup, 0, len(groups))
	for _, g := range groups {
		kept := g.Hooks[:0:0]
		for _, h := range g.Hooks {
			if h.Command != command {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			continue
		}
		g.Hooks = kept
		out = append(out, g)
	}
	return out
}

// matcherFor returns the tool matcher for tool events; other events take none.
func matcherFor(event domain.EventKind) string {
	switch event {
	case domain.EventPreToolUse, domain.EventPostToolUse, domain.EventPermissionRequest:
		return "*"
	default:
		return ""
	}
}

func backupSettings(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	backup := path + backupSuffix
	if err := os.WriteFile(backup, data, domain.RulesFilePermissions); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return backup, nil
}

var _ ports.HostIntegrator = (*Installer)(nil)
