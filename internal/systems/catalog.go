package systems

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// All selects every family or every revision.
const All = "all"

//go:embed assets/systems.yaml
var embeddedCatalog []byte

var (
	ErrUnknownFamily = errors.New("unknown system")
	ErrEmptyCatalog  = errors.New("catalog defines no families")
)

// Family lists the revisions of one OS distribution in build order.
type Family struct {
	Name      string   `yaml:"name"`
	Revisions []string `yaml:"revisions"`
}

// Catalog is the set of buildable systems.
type Catalog struct {
	Families  []Family                     `yaml:"families"`
	Codenames map[string]map[string]string `yaml:"codenames"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	catalog, err := Parse(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded systems catalog: %v", err))
	}
	return catalog
}

// Load reads a catalog from path, or returns the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(catalog.Families) == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[string]bool, len(catalog.Families))
	for _, family := range catalog.Families {
		if family.Name == "" {
			return nil, errors.New("family without a name")
		}
		if seen[family.Name] {
			return nil, fmt.Errorf("family %q declared twice", family.Name)
		}
		seen[family.Name] = true
	}
	return &catalog, nil
}

// FamilyNames returns family names in declaration order.
func (c *Catalog) FamilyNames() []string {
	names := make([]string, len(c.Families))
	for i, family := range c.Families {
		names[i] = family.Name
	}
	return names
}

// Revisions returns the declared revisions of family.
func (c *Catalog) Revisions(family string) ([]string, error) {
	for _, f := range c.Families {
		if f.Name == family {
			return append([]string(nil), f.Revisions...), nil
		}
	}
	return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFamily, family, strings.Join(c.FamilyNames(), ", "))
}

// Known reports whether the catalog declares the family/revision pair.
func (c *Catalog) Known(family, revision string) bool {
	revisions, err := c.Revisions(family)
	return err == nil && slices.Contains(revisions, revision)
}

// Target builds the target for family/revision, resolving its codename.
func (c *Catalog) Target(family, revision string) Target {
	return Target{
		Family:   family,
		Revision: revision,
		Codename: c.Codenames[family][revision],
	}
}

// Plan expands a selection into targets. system and revision are either a
// concrete value or All. Families keep declaration order, and so do
// revisions within a family. An explicit revision is taken as given.
func (c *Catalog) Plan(system, revision string) ([]Target, error) {
	var families []string
	if system == "" || system == All {
		families = c.FamilyNames()
	} else {
		if _, err := c.Revisions(system); err != nil {
			return nil, err
		}
		families = []string{system}
	}

	var plan []Target
	for _, family := range families {
		revisions := []string{revision}
		if revision == "" || revision == All {
			revisions, _ = c.Revisions(family)
		}
		for _, rev := range revisions {
			plan = append(plan, c.Target(family, rev))
		}
	}
	return plan, nil
}
