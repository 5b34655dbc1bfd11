//go:build !(darwin || linux || freebsd || netbsd || openbsd)

package validator

import "os/exec"

// setupProcessGroup falls back to killing the direct child only.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = processWaitDelay
}
