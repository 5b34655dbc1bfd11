package validator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/logger"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func request(argv ...string) domain.ValidatorRequest {
	return domain.ValidatorRequest{
		Rule:    "test-rule",
		Argv:    argv,
		Timeout: 2 * time.Second,
		Event: domain.Event{
			Kind:      domain.EventPreToolUse,
			Tool:      "Write",
			Path:      "app.py",
			Content:   "print('hi')",
			SessionID: "sess-1",
		},
	}
}

func TestRunPassInjectsStdout(t *testing.T) {
	script := writeScript(t, t.TempDir(), "ok.sh", `echo "remember the tests"`)

	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request(script))

	assert.Equal(t, domain.ValidatorPassed, res.Status)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "remember the tests", res.Stdout)
	assert.NoError(t, res.Err)
}

func TestRunNonZeroExitBlocksWithStderr(t *testing.T) {
	script := writeScript(t, t.TempDir(), "deny.sh", "echo 'no secrets allowed' >&2\nexit 3")

	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request(script))

	assert.Equal(t, domain.ValidatorFailed, res.Status)
	assert.True(t, res.Status.Blocks())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "no secrets allowed", res.Stderr)
}

func TestRunReceivesEventOnStdinAndEnv(t *testing.T) {
	script := writeScript(t, t.TempDir(), "echo.sh", `printf '%s|%s|%s|' "$HOOKGATE_RULE" "$HOOKGATE_TOOL" "$HOOKGATE_CONTENT"; cat`)

	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request(script))

	require.Equal(t, domain.ValidatorPassed, res.Status)
	parts := strings.SplitN(res.Stdout, "|", 4)
	require.Len(t, parts, 4)
	assert.Equal(t, "test-rule", parts[0])
	assert.Equal(t, "Write", parts[1])
	assert.Equal(t, "print('hi')", parts[2])
	assert.JSONEq(t, `{"event":"PreToolUse","tool":"Write","path":"app.py","content":"print('hi')","session_id":"sess-1"}`, parts[3])
}

func TestRunTimeoutKillsAndFailsOpen(t *testing.T) {
	script := writeScript(t, t.TempDir(), "hang.sh", "sleep 30 &\nsleep 30")
	req := request(script)
	req.Timeout = 200 * time.Millisecond

	start := time.Now()
	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), req)
	elapsed := time.Since(start)

	assert.Equal(t, domain.ValidatorTimedOut, res.Status)
	assert.True(t, res.Status.InfrastructureFailure())
	assert.ErrorIs(t, res.Err, domain.ErrValidator)
	assert.Less(t, elapsed, req.Timeout+processWaitDelay+time.Second)
}

func TestRunMissingScriptFailsOpen(t *testing.T) {
	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request("./missing-script.sh"))

	assert.Equal(t, domain.ValidatorMissing, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrValidator)
}

func TestRunMissingCommandOnPathFailsOpen(t *testing.T) {
	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request("hookgate-no-such-validator"))
	assert.Equal(t, domain.ValidatorMissing, res.Status)
}

func TestRunNotExecutableFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o644))

	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request(path))

	assert.Equal(t, domain.ValidatorNotExecutable, res.Status)
}

func TestRunResolvesRelativeToEventCwd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	writeScript(t, filepath.Join(dir, "scripts"), "pwd.sh", "pwd")

	req := request("./scripts/pwd.sh")
	req.Event.Cwd = dir
	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), req)

	require.Equal(t, domain.ValidatorPassed, res.Status)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{dir, resolved}, res.Stdout)
}

func TestRunBoundsCapturedOutput(t *testing.T) {
	script := writeScript(t, t.TempDir(), "loud.sh", "head -c 200000 /dev/zero | tr '\\0' 'x'")

	res := NewRunner(logger.NewNop(), nil).Run(context.Background(), request(script))

	require.Equal(t, domain.ValidatorPassed, res.Status)
	assert.Len(t, res.Stdout, domain.MaxValidatorOutput)
}

func TestBreakerSkipsRepeatedlyHangingValidator(t *testing.T) {
	script := writeScript(t, t.TempDir(), "hang.sh", "sleep 30")
	runner := NewRunner(logger.NewNop(), NewBreakers(2, logger.NewNop()))
	req := request(script)
	req.Timeout = 100 * time.Millisecond

	assert.Equal(t, domain.ValidatorTimedOut, runner.Run(context.Background(), req).Status)
	assert.Equal(t, domain.ValidatorTimedOut, runner.Run(context.Background(), req).Status)

	start := time.Now()
	res := runner.Run(context.Background(), req)
	assert.Equal(t, domain.ValidatorCircuitOpen, res.Status)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestBreakerIgnoresBlockingExits(t *testing.T) {
	script := writeScript(t, t.TempDir(), "deny.sh", "exit 1")
	runner := NewRunner(logger.NewNop(), NewBreakers(1, logger.NewNop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, domain.ValidatorFailed, runner.Run(context.Background(), request(script)).Status)
	}
}
