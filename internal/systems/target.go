package systems

import "fmt"

// Target is one family/revision pair to build.
type Target struct {
	Family   string
	Revision string
	Codename string // Release name expected by some templates; may be empty.
}

// Name is the container name used for the target.
func (t Target) Name() string {
	return fmt.Sprintf("%s-%s-bare", t.Family, t.Revision)
}

// AltRevision returns the codename, or the revision when no codename is known.
func (t Target) AltRevision() string {
	if t.Codename != "" {
		return t.Codename
	}
	return t.Revision
}

// Slug is "<family>-<revision>".
func (t Target) Slug() string {
	return t.Family + "-" + t.Revision
}

func (t Target) String() string {
	return t.Family + " " + t.Revision
}
