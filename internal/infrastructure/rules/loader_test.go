package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/logger"
)

const sampleRules = `
version: "1"
settings:
  log_level: debug
  max_context_bytes: 200
  validator_timeout: 2
rules:
  - name: block-force-push
    description: Never force push
    matchers:
      tools: Bash
      command_match: "git push.*(--force|-f)"
    actions:
      block: true
      reason: force push is not allowed
  - name: python-style
    matchers:
      extensions: [".py"]
    actions:
      inject: Follow PEP 8
  - name: secrets
    matchers:
      tools: [Write, Edit]
    actions:
      block_if_match: "AKIA[0-9A-Z]{16}"
  - name: lint
    enabled: false
    matchers:
      events: [pre-tool-use]
    actions:
      run: "./scripts/lint.sh --strict 'two words'"
      timeout: 1500ms
      inject:
        - first
        - second
`

func newTestLoader() *Loader {
	return NewLoader(logger.NewNop())
}

func TestParseCompilesRules(t *testing.T) {
	rs := newTestLoader().Parse([]byte(sampleRules), "inline")

	require.False(t, rs.Fallback)
	require.Empty(t, rs.Issues)
	require.Len(t, rs.Rules, 4)
	assert.Equal(t, []string{"block-force-push", "python-style", "secrets", "lint"}, rs.RuleNames())
	assert.NotEmpty(t, rs.Digest)

	assert.Equal(t, "debug", rs.Settings.LogLevel)
	assert.Equal(t, 200, rs.Settings.MaxContextBytes)
	assert.Equal(t, 2*time.Second, rs.Settings.ValidatorTimeout)
	assert.True(t, rs.Settings.FailOpen)

	force := rs.Rules[0]
	assert.True(t, force.Enabled)
	assert.Equal(t, []string{"Bash"}, force.Matcher.Tools)
	assert.Equal(t, "git push.*(--force|-f)", force.Matcher.CommandMatch.Source)
	require.Len(t, force.Actions, 1)
	assert.Equal(t, domain.BlockAction{Reason: "force push is not allowed"}, force.Actions[0])

	style := rs.Rules[1]
	assert.Equal(t, []domain.Action{domain.InjectAction{Text: []string{"Follow PEP 8"}}}, style.Actions)

	secrets := rs.Rules[2]
	require.Len(t, secrets.Actions, 1)
	assert.Equal(t, domain.ActionBlockIfMatch, secrets.Actions[0].Kind())

	lint := rs.Rules[3]
	assert.False(t, lint.Enabled)
	assert.Equal(t, "disabled in configuration", lint.DisabledReason)
	assert.Equal(t, []domain.EventKind{domain.EventPreToolUse}, lint.Matcher.Events)
	assert.Equal(t, []domain.ActionKind{domain.ActionInject, domain.ActionRun}, lint.ActionKinds())
	run := lint.Actions[1].(domain.RunAction)
	assert.Equal(t, []string{"./scripts/lint.sh", "--strict", "two words"}, run.Argv)
	assert.Equal(t, 1500*time.Millisecond, run.Timeout)
}

func TestParseInvalidPatternDisablesOnlyThatRule(t *testing.T) {
	doc := `
rules:
  - name: broken
    matchers:
      command_match: "git push ("
    actions:
      block: true
  - name: broken-scan
    actions:
      block_if_match: "[unclosed"
  - name: fine
    matchers:
      tools: [Bash]
    actions:
      inject: ok
`
	rs := newTestLoader().Parse([]byte(doc), "inline")

	require.False(t, rs.Fallback)
	require.Len(t, rs.Rules, 3)
	assert.False(t, rs.Rules[0].Enabled)
	assert.Contains(t, rs.Rules[0].DisabledReason, "command_match")
	assert.False(t, rs.Rules[1].Enabled)
	assert.True(t, rs.Rules[2].Enabled)
	assert.True(t, rs.HasErrors())

	var patternErrors int
	for _, issue := range rs.Issues {
		if errors.Is(issue.Err, domain.ErrPattern) {
			patternErrors++
		}
	}
	assert.Equal(t, 2, patternErrors)
}

func TestParseMalformedFallsBackToPassThrough(t *testing.T) {
	rs := newTestLoader().Parse([]byte("rules: [\n  - name: x\n    actions: {block: true"), "broken.yaml")

	assert.True(t, rs.Fallback)
	assert.Empty(t, rs.Rules)
	assert.True(t, rs.Settings.FailOpen)
	require.Len(t, rs.Issues, 1)
	assert.ErrorIs(t, rs.Issues[0].Err, domain.ErrConfiguration)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	rs := newTestLoader().Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.True(t, rs.Fallback)
	assert.Empty(t, rs.Rules)
	require.Len(t, rs.Issues, 1)
	assert.Equal(t, "rule set not found", rs.Issues[0].Message)
}

func TestParseDuplicateNamesDisableLaterRule(t *testing.T) {
	doc := `
rules:
  - name: same
    actions: {inject: a}
  - name: same
    actions: {inject: b}
`
	rs := newTestLoader().Parse([]byte(doc), "inline")
	require.Len(t, rs.Rules, 2)
	assert.True(t, rs.Rules[0].Enabled)
	assert.False(t, rs.Rules[1].Enabled)
	assert.True(t, rs.HasErrors())
}

func TestParseWarnsOnCatchAllAndActionlessRules(t *testing.T) {
	doc := `
rules:
  - name: everything
    actions: {inject: hello}
  - name: nothing
    matchers: {tools: [Bash]}
`
	rs := newTestLoader().Parse([]byte(doc), "inline")
	require.Len(t, rs.Rules, 2)
	assert.True(t, rs.Rules[0].Enabled, "catch-all rules are honored")
	assert.True(t, rs.Rules[0].Matcher.IsEmpty())
	assert.False(t, rs.HasErrors())
	assert.Len(t, rs.Issues, 2)
}

func TestParseUnknownEventKindDisablesRule(t *testing.T) {
	rs := newTestLoader().Parse([]byte("rules:\n  - name: x\n    matchers: {events: [Stop]}\n    actions: {block: true}\n"), "inline")
	require.Len(t, rs.Rules, 1)
	assert.False(t, rs.Rules[0].Enabled)
}

func TestParseUnbalancedRunQuoteDisablesRule(t *testing.T) {
	rs := newTestLoader().Parse([]byte("rules:\n  - name: x\n    actions: {run: \"./check.sh 'oops\"}\n"), "inline")
	require.Len(t, rs.Rules, 1)
	assert.False(t, rs.Rules[0].Enabled)
	assert.ErrorIs(t, rs.Issues[0].Err, domain.ErrPattern)
}

func TestParseMalformedDirectoryGlobDisablesRule(t *testing.T) {
	rs := newTestLoader().Parse([]byte("rules:\n  - name: x\n    matchers: {directories: [\"/repo/[abc\"]}\n    actions: {block: true}\n  - name: y\n    matchers: {directories: [\"/repo/**/secrets\"]}\n    actions: {block: true}\n"), "inline")
	require.Len(t, rs.Rules, 2)
	assert.False(t, rs.Rules[0].Enabled)
	assert.ErrorIs(t, rs.Issues[0].Err, domain.ErrPattern)
	assert.True(t, rs.Rules[1].Enabled)
}

func TestStoreReloadSwapsRuleSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: one\n    actions: {inject: a}\n"), 0o600))

	store := NewStore(path, newTestLoader(), logger.NewNop())
	first := store.Current()
	assert.Equal(t, []string{"one"}, first.RuleNames())

	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: two\n    actions: {inject: b}\n"), 0o600))
	second := store.Reload()

	assert.Equal(t, []string{"two"}, store.Current().RuleNames())
	assert.Equal(t, []string{"one"}, first.RuleNames(), "published sets are never mutated")
	assert.NotEqual(t, first.Digest, second.Digest)
}

func TestStoreWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o600))

	store := NewStore(path, newTestLoader(), logger.NewNop())
	reloaded := make(chan *domain.RuleSet, 4)
	store.OnReload(func(rs *domain.RuleSet) { reloaded <- rs })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: hot\n    actions: {inject: x}\n"), 0o600))

	select {
	case rs := <-reloaded:
		assert.Equal(t, []string{"hot"}, rs.RuleNames())
	case <-time.After(3 * time.Second):
		t.Fatal("rule set was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}
