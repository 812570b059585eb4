package artifacts

// ArtifactStore records artifacts produced by a build.
type ArtifactStore interface {
	StoreArtifact(artifactPath string, kind ArtifactKind, metadata map[string]any) (Artifact, error)
	RemoveArtifact(artifact Artifact) error
	Purge(names ...string) error
}
