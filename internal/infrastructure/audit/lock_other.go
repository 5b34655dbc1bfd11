//go:build !(darwin || linux || freebsd || netbsd || openbsd)

package audit

import "os"

// lockFile is a no-op where flock is unavailable; a single process still
// chains correctly.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
