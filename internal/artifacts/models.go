package artifacts

type ArtifactKind string

const (
	BoxArtifact  ArtifactKind = "box"  // Vagrant box archive
	TextArtifact ArtifactKind = "text" // Generic text artifacts
)

type Artifact struct {
	ID   string
	Kind ArtifactKind
	URI  string

	Checksum    *string
	Size        int64
	ContentType string
	Metadata    map[string]any
}
