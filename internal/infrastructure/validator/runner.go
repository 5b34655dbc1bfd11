// Package validator runs external validator scripts for run actions.
//
// The child receives the event as JSON on stdin plus HOOKGATE_* environment
// variables. Exit 0 continues (stdout is injected), a non-zero exit blocks
// (stderr is the reason). Timeouts, missing executables and spawn failures
// fail open. The child runs in its own process group, which is killed and
// reaped before Run returns.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// processWaitDelay bounds pipe draining after the process group is killed.
const processWaitDelay = 500 * time.Millisecond

// maxEnvContent bounds HOOKGATE_CONTENT; the full payload is always on stdin.
const maxEnvContent = 128 * 1024

// Runner implements ports.ValidatorRunner.
type Runner struct {
	log       ports.Logger
	breakers  *Breakers
	maxOutput int
}

// NewRunner builds a runner. breakers may be nil to disable circuit breaking.
func NewRunner(log ports.Logger, breakers *Breakers) *Runner {
	return &Runner{log: log, breakers: breakers, maxOutput: domain.MaxValidatorOutput}
}

// Run implements ports.ValidatorRunner.
func (r *Runner) Run(ctx context.Context, req domain.ValidatorRequest) domain.ValidatorResult {
	if r.breakers == nil {
		return r.run(ctx, req)
	}
	return r.breakers.Do(req, func() domain.ValidatorResult {
		return r.run(ctx, req)
	})
}

func (r *Runner) run(ctx context.Context, req domain.ValidatorRequest) domain.ValidatorResult {
	start := time.Now()
	if len(req.Argv) == 0 {
		return domain.ValidatorResult{
			Status: domain.ValidatorSpawnError,
			Err:    fmt.Errorf("%w: rule %s: empty command", domain.ErrValidator, req.Rule),
		}
	}

	path, status, err := resolveExecutable(req.Argv[0], req.Event.Cwd)
	if err != nil {
		r.log.Warn("validator unavailable, continuing", map[string]interface{}{
			"rule":    req.Rule,
			"command": req.Argv[0],
			"status":  string(status),
			"error":   err.Error(),
		})
		return domain.ValidatorResult{Status: status, Err: err, Elapsed: time.Since(start)}
	}

	payload, err := json.Marshal(req.Event)
	if err != nil {
		return domain.ValidatorResult{
			Status:  domain.ValidatorSpawnError,
			Err:     fmt.Errorf("%w: encode event: %v", domain.ErrValidator, err),
			Elapsed: time.Since(start),
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultValidatorTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, req.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(), eventEnv(req)...)
	if req.Event.Cwd != "" {
		if info, statErr := os.Stat(req.Event.Cwd); statErr == nil && info.IsDir() {
			cmd.Dir = req.Event.Cwd
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: r.maxOutput}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: r.maxOutput}
	setupProcessGroup(cmd)

	runErr := cmd.Run()
	result := domain.ValidatorResult{
		Stdout:  strings.TrimSpace(stdout.String()),
		Stderr:  strings.TrimSpace(stderr.String()),
		Elapsed: time.Since(start),
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		result.Status = domain.ValidatorTimedOut
		result.ExitCode = -1
		result.Err = fmt.Errorf("%w: rule %s: exceeded %s: %v", domain.ErrValidator, req.Rule, timeout, ctxErr)
		r.log.Warn("validator timed out, continuing", map[string]interface{}{
			"rule":    req.Rule,
			"command": req.Argv[0],
			"timeout": timeout.String(),
		})
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result.Status = domain.ValidatorPassed
	case errors.As(runErr, &exitErr):
		result.Status = domain.ValidatorFailed
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Status = domain.ValidatorSpawnError
		result.ExitCode = -1
		result.Err = fmt.Errorf("%w: rule %s: %v", domain.ErrValidator, req.Rule, runErr)
		r.log.Warn("validator failed to start, continuing", map[string]interface{}{
			"rule":    req.Rule,
			"command": req.Argv[0],
			"error":   runErr.Error(),
		})
	}
	return result
}

// Resolve implements ports.ExecutableResolver.
func (r *Runner) Resolve(name, cwd string) (string, error) {
	path, _, err := resolveExecutable(name, cwd)
	return path, err
}

// resolveExecutable locates argv[0]. Names without a separator are looked up
// on PATH; relative paths resolve against the event working directory.
func resolveExecutable(name, cwd string) (string, domain.ValidatorStatus, error) {
	if !strings.ContainsRune(name, filepath.Separator) && !strings.ContainsRune(name, '/') {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", domain.ValidatorMissing, fmt.Errorf("%w: %s not found on PATH", domain.ErrValidator, name)
		}
		return path, "", nil
	}

	path := name
	if !filepath.IsAbs(path) && cwd != "" {
		path = filepath.Join(cwd, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ValidatorMissing, fmt.Errorf("%w: %s does not exist", domain.ErrValidator, path)
		}
		return "", domain.ValidatorSpawnError, fmt.Errorf("%w: %s: %v", domain.ErrValidator, path, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return "", domain.ValidatorNotExecutable, fmt.Errorf("%w: %s is not executable", domain.ErrValidator, path)
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return path, "", nil
}

func eventEnv(req domain.ValidatorRequest) []string {
	ev := req.Event
	content := ev.Content
	if len(content) > maxEnvContent {
		content = content[:maxEnvContent]
	}
	return []string{
		"HOOKGATE_RULE=" + req.Rule,
		"HOOKGATE_EVENT=" + string(ev.Kind),
		"HOOKGATE_TOOL=" + ev.Tool,
		"HOOKGATE_COMMAND=" + ev.Command,
		"HOOKGATE_PATH=" + ev.Path,
		"HOOKGATE_CONTENT=" + content,
		"HOOKGATE_SESSION_ID=" + ev.SessionID,
		"HOOKGATE_CWD=" + ev.Cwd,
	}
}

// limitedWriter keeps at most limit bytes and silently discards the rest so
// a chatty validator cannot block on a full pipe.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if remaining := w.limit - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			w.buf.Write(p[:remaining])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

var (
	_ ports.ValidatorRunner    = (*Runner)(nil)
	_ ports.ExecutableResolver = (*Runner)(nil)
)
