package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/logger"
)

func newTestInstaller(t *testing.T) (*Installer, string) {
	t.Helper()
	dir := t.TempDir()
	inst := NewInstaller(logger.NewNop())
	inst.ProjectDir = dir
	return inst, filepath.Join(dir, ".claude", "settings.json")
}

func readJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestInstallCreatesSettings(t *testing.T) {
	inst, path := newTestInstaller(t)

	res, err := inst.Install(domain.ScopeProject, nil, false)
	require.NoError(t, err)
	assert.Equal(t, path, res.SettingsFile)
	assert.Equal(t, DefaultEvents, res.Changed)
	assert.Empty(t, res.BackupFile)

	settings := readJSON(t, path)
	hooks := settings["hooks"].(map[string]interface{})
	pre := hooks["PreToolUse"].([]interface{})
	require.Len(t, pre, 1)
	group := pre[0].(map[string]interface{})
	assert.Equal(t, "*", group["matcher"])
	cmd := group["hooks"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "command", cmd["type"])
	assert.Equal(t, DefaultCommand, cmd["command"])

	prompt := hooks["UserPromptSubmit"].([]interface{})[0].(map[string]interface{})
	_, hasMatcher := prompt["matcher"]
	assert.False(t, hasMatcher)
}

func TestInstallPreservesExistingSettings(t *testing.T) {
	inst, path := newTestInstaller(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "model": "opus",
  "hooks": {
    "PreToolUse": [{"matcher": "Bash", "hooks": [{"type": "command", "command": "audit.sh", "timeout": 10}]}]
  }
}`), 0o644))

	res, err := inst.Install(domain.ScopeProject, []domain.EventKind{domain.EventPreToolUse}, false)
	require.NoError(t, err)
	assert.Equal(t, path+".bak", res.BackupFile)
	assert.FileExists(t, res.BackupFile)

	settings := readJSON(t, path)
	assert.Equal(t, "opus", settings["model"])
	pre := settings["hooks"].(map[string]interface{})["PreToolUse"].([]interface{})
	require.Len(t, pre, 2)
	first := pre[0].(map[string]interface{})
	assert.Equal(t, "Bash", first["matcher"])
	assert.Equal(t, float64(10), first["hooks"].([]interface{})[0].(map[string]interface{})["timeout"])

	again, err := inst.Install(domain.ScopeProject, []domain.EventKind{domain.EventPreToolUse}, false)
	require.NoError(t, err)
	assert.Empty(t, again.Changed)
	assert.Equal(t, []domain.EventKind{domain.EventPreToolUse}, again.Unchanged)

	forced, err := inst.Install(domain.ScopeProject, []domain.EventKind{domain.EventPreToolUse}, true)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventKind{domain.EventPreToolUse}, forced.Changed)
	assert.Len(t, readJSON(t, path)["hooks"].(map[string]interface{})["PreToolUse"], 2)
}

func TestUninstallAndStatus(t *testing.T) {
	inst, path := newTestInstaller(t)

	status := inst.Status(domain.ScopeProject)
	assert.False(t, status.Exists)
	assert.Empty(t, status.Registered)

	_, err := inst.Install(domain.ScopeProject, []domain.EventKind{domain.EventPreToolUse, domain.EventSessionStart}, false)
	require.NoError(t, err)

	status = inst.Status(domain.ScopeProject)
	assert.True(t, status.Exists)
	assert.Equal(t, []domain.EventKind{domain.EventPreToolUse, domain.EventSessionStart}, status.Registered)

	res, err := inst.Uninstall(domain.ScopeProject)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.EventKind{domain.EventPreToolUse, domain.EventSessionStart}, res.Changed)

	settings := readJSON(t, path)
	_, hasHooks := settings["hooks"]
	assert.False(t, hasHooks)
	assert.Empty(t, inst.Status(domain.ScopeProject).Registered)
}

func TestStatusReportsMalformedSettings(t *testing.T) {
	inst, path := newTestInstaller(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"hooks": [`), 0o644))

	status := inst.Status(domain.ScopeProject)
	assert.True(t, status.Exists)
	assert.NotEmpty(t, status.Error)

	_, err := inst.Install(domain.ScopeProject, nil, false)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
