package artifacts

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreArtifactInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "debian-10-bare.box")
	require.NoError(t, os.WriteFile(path, []byte("box"), 0o644))

	store := &LocalStore{BaseDir: dir}
	artifact, err := store.StoreArtifact(path, BoxArtifact, map[string]any{"family": "debian"})
	require.NoError(t, err)

	assert.Equal(t, BoxArtifact, artifact.Kind)
	assert.Equal(t, "file://"+path, artifact.URI)
	assert.Equal(t, int64(3), artifact.Size)
	require.NotNil(t, artifact.Checksum)
	assert.Equal(t, "26f8567f2569182294c3fa5b9f9cb2270b554eef628b4c149cf82a42888ff4ae", *artifact.Checksum)
	assert.Equal(t, "application/gzip", artifact.ContentType)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, loaded.ID)
	assert.Equal(t, "debian", loaded.Metadata["family"])
}

func TestStoreArtifactCopiesForeignFiles(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	base := t.TempDir()
	artifact, err := (&LocalStore{BaseDir: base}).StoreArtifact(src, TextArtifact, nil)
	require.NoError(t, err)

	path, err := PathFromURI(artifact.URI)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "notes.txt"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "text/plain", artifact.ContentType)
}

func TestRemoveArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.box")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	store := &LocalStore{BaseDir: dir}
	artifact, err := store.StoreArtifact(path, BoxArtifact, nil)
	require.NoError(t, err)
	require.FileExists(t, path+".json")

	require.NoError(t, store.RemoveArtifact(artifact))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".json")
	require.NoError(t, store.RemoveArtifact(artifact))
}

func TestPurgeOnlyRemovesNamedArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := &LocalStore{BaseDir: dir}
	for _, name := range []string{"debian-10-bare.box", "alpine-3.16-bare.box"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("box"), 0o644))
		_, err := store.StoreArtifact(path, BoxArtifact, nil)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))

	require.NoError(t, store.Purge("debian-10-bare.box", "fedora-34-bare.box"))

	assert.NoFileExists(t, filepath.Join(dir, "debian-10-bare.box"))
	assert.NoFileExists(t, filepath.Join(dir, "debian-10-bare.box.json"))
	assert.FileExists(t, filepath.Join(dir, "alpine-3.16-bare.box"))
	assert.FileExists(t, filepath.Join(dir, "alpine-3.16-bare.box.json"))
	assert.FileExists(t, filepath.Join(dir, "go.mod"))

	assert.Error(t, store.Purge("../go.mod"))
	assert.Error(t, store.Purge(".."))
	assert.NoError(t, (&LocalStore{BaseDir: filepath.Join(dir, "missing")}).Purge("x.box"))
}

func TestPathFromURI(t *testing.T) {
	t.Parallel()

	path, err := PathFromURI("file:///srv/work/x.box")
	require.NoError(t, err)
	assert.Equal(t, "/srv/work/x.box", path)

	_, err = PathFromURI("https://example.com/x.box")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "alpine-3.16-bare.box")
	require.NoError(t, os.WriteFile(path, []byte("box"), 0o644))
	store := &LocalStore{BaseDir: dir}

	_, err := store.Lookup("alpine-3.16-bare.box")
	assert.ErrorIs(t, err, fs.ErrNotExist, "a box without a sidecar was never stored")

	stored, err := store.StoreArtifact(path, BoxArtifact, nil)
	require.NoError(t, err)
	found, err := store.Lookup("alpine-3.16-bare.box")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)
}
