package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchivePathAnchorsRelativeFile(t *testing.T) {
	t.Parallel()

	got, err := archivePath("out.tar", "sub")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	wd, err := filepath.Abs("out.tar")
	require.NoError(t, err)
	assert.Equal(t, wd, got)
}

func TestArchivePathPassThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		dir  string
	}{
		{name: "stdio", file: "-", dir: "sub"},
		{name: "no directory change", file: "out.tar", dir: ""},
		{name: "already absolute", file: "/tmp/out.tar", dir: "sub"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := archivePath(tt.file, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.file, got)
		})
	}
}

func TestParseFlagsRequiresOneMode(t *testing.T) {
	t.Parallel()

	_, err := parseFlags([]string{"-f", "out.tar"})
	require.Error(t, err)

	_, err = parseFlags([]string{"-c", "-x"})
	require.Error(t, err)

	cfg, err := parseFlags([]string{"-c", "-f", "out.tar", "src"})
	require.NoError(t, err)
	assert.True(t, cfg.create)
	assert.Equal(t, []string{"src"}, cfg.paths)
}

func TestParseFlagsRejectsConflictingFilters(t *testing.T) {
	t.Parallel()

	_, err := parseFlags([]string{"-c", "-z", "-J"})
	require.Error(t, err)

	_, err = parseFlags([]string{"-c", "-j"})
	require.Error(t, err)
}
