// Package testutil provides filesystem helpers for building and
// comparing directory trees in tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TreeEntry describes one node in a test tree. A trailing "/" on Path
// marks a directory, a non-empty Link marks a symlink, and everything
// else is a regular file holding Data.
type TreeEntry struct {
	Path string
	Data string
	Link string
	Mode fs.FileMode
}

// BuildTree materializes entries under dir, creating parent
// directories as needed. Entries are applied in order so directories
// may be listed before their contents or omitted entirely.
func BuildTree(t testing.TB, dir string, entries []TreeEntry) {
	t.Helper()

	for _, e := range entries {
		target := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(e.Path, "/")))
		switch {
		case strings.HasSuffix(e.Path, "/"):
			mode := e.Mode
			if mode == 0 {
				mode = 0o755
			}
			require.NoError(t, os.MkdirAll(target, mode))
		case e.Link != "":
			require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
			require.NoError(t, os.Symlink(e.Link, target))
		default:
			mode := e.Mode
			if mode == 0 {
				mode = 0o644
			}
			require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
			require.NoError(t, os.WriteFile(target, []byte(e.Data), mode))
		}
	}
}

// TreeSnapshot maps slash-separated relative paths to a short
// description of each node: "dir", "link -> target", or file content.
type TreeSnapshot map[string]string

// Snapshot walks dir and records every node except the root itself.
func Snapshot(t testing.TB, dir string) TreeSnapshot {
	t.Helper()

	snap := make(TreeSnapshot)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		switch {
		case d.IsDir():
			snap[name] = "dir"
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			snap[name] = "link -> " + link
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			snap[name] = string(data)
		}
		return nil
	})
	require.NoError(t, err)
	return snap
}

// RequireSameTree fails the test unless both directories hold the same
// nodes with the same content and link targets.
func RequireSameTree(t testing.TB, want, got string) {
	t.Helper()

	wantSnap := Snapshot(t, want)
	gotSnap := Snapshot(t, got)
	assert.Equal(t, wantSnap, gotSnap)
}

// SortedPaths returns the snapshot's paths in sorted order.
func (s TreeSnapshot) SortedPaths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
