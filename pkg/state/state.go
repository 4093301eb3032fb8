// Package state owns the canonical on-disk runtime layout under the DB
// path and helpers for locating runtime/test artifacts.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved runtime folders under the DB path.
type Paths struct {
	Store string
	Sweep string
	Crash string
	Abort string
	Tmp   string
}

// PathsVar is populated by EnsureStateDirs and read by the sweeper and
// the crash-dump writer.
var PathsVar Paths

// EnsureStateDirs creates the runtime folder layout under dbPath. It
// rejects symlinks and permissive modes, and verifies each directory is
// writable by the process.
func EnsureStateDirs(dbPath string) error {
	statePath := filepath.Join(dbPath, "state")
	p := Paths{
		Store: filepath.Join(dbPath, "store"),
		Sweep: filepath.Join(statePath, "sweep"),
		Crash: filepath.Join(statePath, "crash"),
		Abort: filepath.Join(statePath, "abort"),
		Tmp:   filepath.Join(statePath, "tmp"),
	}

	for _, dir := range []string{p.Store, p.Sweep, p.Crash, p.Abort, p.Tmp} {
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", dir, err)
		}
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", dir)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", dir)
			}
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", dir, err)
		}

		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	PathsVar = p
	return nil
}
