package systems

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHasEntries(t *testing.T) {
	t.Parallel()

	catalog := Default()
	assert.Equal(t, []string{"fedora", "centos", "ubuntu", "debian", "alpine"}, catalog.FamilyNames())

	revisions, err := catalog.Revisions("debian")
	require.NoError(t, err)
	assert.Equal(t, []string{"8", "9", "10"}, revisions)
}

func TestTargetNamingAndCodenames(t *testing.T) {
	t.Parallel()

	catalog := Default()

	tests := []struct {
		family, revision string
		name, alt        string
	}{
		{"debian", "10", "debian-10-bare", "buster"},
		{"ubuntu", "20.04", "ubuntu-20.04-bare", "focal"},
		{"ubuntu", "14.04", "ubuntu-14.04-bare", "trusty"},
		{"alpine", "3.16", "alpine-3.16-bare", "3.16"},
		{"fedora", "34", "fedora-34-bare", "34"},
	}
	for _, tc := range tests {
		target := catalog.Target(tc.family, tc.revision)
		assert.Equal(t, tc.name, target.Name())
		assert.Equal(t, tc.alt, target.AltRevision())
		assert.Equal(t, tc.family+"-"+tc.revision, target.Slug())
	}
}

func TestPlanSingleTarget(t *testing.T) {
	t.Parallel()

	plan, err := Default().Plan("debian", "10")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, Target{Family: "debian", Revision: "10", Codename: "buster"}, plan[0])
}

func TestPlanAllRevisionsKeepsOrder(t *testing.T) {
	t.Parallel()

	plan, err := Default().Plan("centos", All)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "7", plan[0].Revision)
	assert.Equal(t, "8", plan[1].Revision)
}

func TestPlanEverything(t *testing.T) {
	t.Parallel()

	catalog := Default()
	plan, err := catalog.Plan(All, All)
	require.NoError(t, err)

	total := 0
	for _, family := range catalog.Families {
		total += len(family.Revisions)
	}
	require.Len(t, plan, total)
	assert.Equal(t, "fedora", plan[0].Family)
	assert.Equal(t, "29", plan[0].Revision)
	assert.Equal(t, Target{Family: "alpine", Revision: "edge"}, plan[len(plan)-1])
}

func TestPlanExplicitRevisionAcrossFamilies(t *testing.T) {
	t.Parallel()

	plan, err := Default().Plan(All, "8")
	require.NoError(t, err)
	assert.Len(t, plan, 5)
	for _, target := range plan {
		assert.Equal(t, "8", target.Revision)
	}
}

func TestPlanUnknownFamily(t *testing.T) {
	t.Parallel()

	_, err := Default().Plan("gentoo", All)
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestKnown(t *testing.T) {
	t.Parallel()

	catalog := Default()
	assert.True(t, catalog.Known("alpine", "edge"))
	assert.False(t, catalog.Known("ubuntu", "14.04"))
	assert.False(t, catalog.Known("gentoo", "1"))
}

func TestLoadCustomCatalog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "systems.yaml")
	content := "families:\n  - name: debian\n    revisions: [\"12\"]\ncodenames:\n  debian:\n    \"12\": bookworm\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bookworm", catalog.Target("debian", "12").AltRevision())
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("families: []\n"))
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = Parse([]byte("families:\n  - name: a\n  - name: a\n"))
	assert.Error(t, err)
}
