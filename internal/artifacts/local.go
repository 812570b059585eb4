package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore registers artifacts that already live under BaseDir. Each one
// gets a sidecar "<file>.json" describing it.
type LocalStore struct {
	BaseDir string
}

var _ ArtifactStore = (*LocalStore)(nil)

// StoreArtifact checksums the artifact at artifactPath and writes its sidecar.
// Files outside BaseDir are copied in first.
func (store *LocalStore) StoreArtifact(artifactPath string, kind ArtifactKind, metadata map[string]any) (Artifact, error) {
	if store.BaseDir == "" {
		return Artifact{}, errors.New("base directory is not configured")
	}
	if artifactPath == "" {
		return Artifact{}, errors.New("artifact path is required")
	}
	if err := os.MkdirAll(store.BaseDir, 0o755); err != nil {
		return Artifact{}, err
	}

	destPath, err := store.place(artifactPath)
	if err != nil {
		return Artifact{}, err
	}

	checksum, size, err := digest(destPath)
	if err != nil {
		return Artifact{}, err
	}

	artifact := Artifact{
		ID:          uuid.NewString(),
		Kind:        kind,
		URI:         FileURI(destPath),
		Checksum:    &checksum,
		Size:        size,
		ContentType: detectContentType(destPath),
		Metadata:    maps.Clone(metadata),
	}
	if err := store.writeMetadata(destPath, artifact); err != nil {
		return Artifact{}, err
	}
	return artifact, nil
}

// RemoveArtifact deletes the artifact file and its sidecar.
func (store *LocalStore) RemoveArtifact(artifact Artifact) error {
	path, err := PathFromURI(artifact.URI)
	if err != nil {
		return err
	}
	return RemoveWithSidecar(path)
}

// Purge removes the named artifacts under the base directory together with
// their sidecars. Nothing else in the directory is touched.
func (store *LocalStore) Purge(names ...string) error {
	for _, name := range names {
		if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
			return fmt.Errorf("invalid artifact name %q", name)
		}
		if err := RemoveWithSidecar(filepath.Join(store.BaseDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the stored artifact named name, or an fs.ErrNotExist error
// when it was never stored.
func (store *LocalStore) Lookup(name string) (Artifact, error) {
	return Load(filepath.Join(store.BaseDir, name))
}

// Load reads the sidecar of the artifact at path.
func Load(path string) (Artifact, error) {
	payload, err := os.ReadFile(metadataPath(path))
	if err != nil {
		return Artifact{}, err
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return Artifact{}, err
	}
	return artifact, nil
}

// RemoveWithSidecar deletes path and its sidecar, ignoring missing files.
func RemoveWithSidecar(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Remove(metadataPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (store *LocalStore) place(artifactPath string) (string, error) {
	base, err := filepath.Abs(store.BaseDir)
	if err != nil {
		return "", err
	}
	src, err := filepath.Abs(artifactPath)
	if err != nil {
		return "", err
	}
	if filepath.Dir(src) == base {
		return src, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	destPath := filepath.Join(base, filepath.Base(src))
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	return destPath, out.Close()
}

func (store *LocalStore) writeMetadata(filePath string, artifact Artifact) error {
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metadataPath(filePath), payload, 0o644)
}

func digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func metadataPath(path string) string {
	return path + ".json"
}

func detectContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".box", ".gz", ".tgz":
		return "application/gzip"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
