package box

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArchiveLeavesNothingOnFailure(t *testing.T) {
	t.Parallel()

	stage := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stage, metadataFile), []byte(`{"provider":"lxc"}`), 0o644))
	outDir := t.TempDir()
	dest := filepath.Join(outDir, "debian-10-bare.box")

	err := writeArchive(dest, stage, []string{metadataFile, rootfsArchive})
	require.Error(t, err)
	assert.NoFileExists(t, dest)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary archive must be removed")
}

func TestWriteArchiveReplacesDestination(t *testing.T) {
	t.Parallel()

	stage := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stage, metadataFile), []byte(`{"provider":"lxc"}`), 0o644))
	dest := filepath.Join(t.TempDir(), "alpine-edge-bare.box")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o600))

	require.NoError(t, writeArchive(dest, stage, []string{metadataFile}))

	contents := readBox(t, dest)
	assert.Equal(t, `{"provider":"lxc"}`, string(contents["./"+metadataFile]))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
