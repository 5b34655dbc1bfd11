package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/config"
)

const containerRules = `settings:
  log_level: error
  validator_failure_threshold: 2
rules:
  - name: no-force
    matchers:
      tools: Bash
      command_match: "--force"
    actions:
      block: true
`

func setupContainer(t *testing.T, dir string, env map[string]string) *Container {
	t.Helper()
	t.Setenv("HOME", dir)
	rulesPath := filepath.Join(dir, "hooks.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(containerRules), 0o644))

	t.Setenv("HOOKGATE_RULES", rulesPath)
	t.Setenv("HOOKGATE_AUDIT_LOG", filepath.Join(dir, "audit.jsonl"))
	for k, v := range env {
		t.Setenv(k, v)
	}

	c, err := BuildContainer(context.Background(), config.NewLoader(filepath.Join(dir, "config.yaml")), Options{})
	require.NoError(t, err)
	return c
}

func TestBuildContainerEvaluatesAndAudits(t *testing.T) {
	dir := t.TempDir()
	c := setupContainer(t, dir, map[string]string{
		"HOOKGATE_METRICS_TEXTFILE": filepath.Join(dir, "metrics", "hookgate.prom"),
	})

	require.NotNil(t, c.AuditLog)
	assert.Nil(t, c.AuditIndex)
	assert.Len(t, c.Rules.Current().Rules, 1)
	assert.Equal(t, 2, c.Breakers.Threshold())

	d := c.EvalService.Evaluate(context.Background(), domain.Event{
		Kind:    domain.EventPreToolUse,
		Tool:    "Bash",
		Command: "git push --force",
	})
	assert.True(t, d.Blocked())

	require.NoError(t, c.Close())

	entries, err := c.AuditReader.Query(context.Background(), domain.AuditQuery{Rule: "no-force"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutcomeBlock, entries[0].Outcome)

	prom, err := os.ReadFile(filepath.Join(dir, "metrics", "hookgate.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `hookgate_decisions_total{outcome="block"} 1`)
}

func TestBuildContainerWithIndex(t *testing.T) {
	dir := t.TempDir()
	c := setupContainer(t, dir, map[string]string{
		"HOOKGATE_AUDIT_INDEX_ENABLED": "true",
	})
	defer c.Close()

	require.NotNil(t, c.AuditIndex)
	assert.Equal(t, c.AuditIndex, c.AuditReader)
	assert.NotNil(t, c.DoctorService.Index)
	assert.FileExists(t, filepath.Join(dir, ".hookgate", "logs", "audit.db"))
}

func TestBuildContainerAuditDisabled(t *testing.T) {
	c := setupContainer(t, t.TempDir(), map[string]string{"HOOKGATE_AUDIT_DISABLED": "true"})

	assert.Nil(t, c.AuditLog)
	assert.Nil(t, c.EvalService.Audit)
	assert.NotNil(t, c.AuditReader)
	require.NoError(t, c.Close())
}

func TestBuildContainerRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("HOOKGATE_LOG_FORMAT", "xml")

	_, err := BuildContainer(context.Background(), config.NewLoader(filepath.Join(dir, "config.yaml")), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestApplySettingsOnReload(t *testing.T) {
	c := setupContainer(t, t.TempDir(), nil)
	defer c.Close()

	require.NoError(t, os.WriteFile(c.Rules.Path(), []byte("settings:\n  validator_failure_threshold: 5\nrules: []\n"), 0o644))
	rs := c.Rules.Reload()

	assert.Empty(t, rs.Rules)
	assert.Equal(t, 5, c.Breakers.Threshold())
}
