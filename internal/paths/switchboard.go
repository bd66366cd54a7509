// Package paths provides path resolution utilities.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveDataDir resolves the .switchboard data directory from user
// input. It normalizes the input (accepting either a project dir or the
// data dir itself), appends .switchboard if needed, and follows redirect
// files for git worktrees.
//
// Input normalization:
//   - "/path/to/project" -> "/path/to/project/.switchboard"
//   - "/path/to/project/.switchboard" -> "/path/to/project/.switchboard"
//   - "/path/to/data" (containing journal.db) -> "/path/to/data"
//   - "" -> "./.switchboard"
//
// Redirect handling:
//   - If .switchboard/redirect exists, follows it to the actual location
//   - This supports git worktrees where .switchboard redirects to the
//     main worktree
func ResolveDataDir(path string) string {
	if path == "" {
		path = "."
	}
	path = filepath.Clean(path)

	// If path already ends with .switchboard, use it directly
	if filepath.Base(path) == ".switchboard" {
		return followRedirect(path)
	}

	// If path contains journal.db directly, use it as the data directory
	// This supports SWITCHBOARD_DATA_DIR pointing straight at a data dir
	dbPath := filepath.Join(path, "journal.db")
	if _, err := os.Stat(dbPath); err == nil {
		return followRedirect(path)
	}

	// Otherwise, append .switchboard to the path
	dataDir := filepath.Join(path, ".switchboard")

	// Follow redirect if present (for git worktrees)
	return followRedirect(dataDir)
}

// JournalPath returns the journal database location under the resolved
// data directory.
func JournalPath(dataDir string) string {
	return filepath.Join(dataDir, "journal.db")
}

// TracesPath returns the default trace output file under the resolved
// data directory.
func TracesPath(dataDir string) string {
	return filepath.Join(dataDir, "traces", "traces.jsonl")
}

// followRedirect checks for a redirect file and follows it if present.
// Redirect files are used by git worktrees to point at the main
// worktree's data directory.
func followRedirect(dataDir string) string {
	redirectPath := filepath.Join(dataDir, "redirect")

	content, err := os.ReadFile(redirectPath) //nolint:gosec // redirect path is within the data dir
	if err != nil {
		return dataDir
	}

	redirectTarget := strings.TrimSpace(string(content))
	if redirectTarget == "" {
		return dataDir
	}

	resolvedPath := filepath.Join(dataDir, redirectTarget)
	return filepath.Clean(resolvedPath)
}
