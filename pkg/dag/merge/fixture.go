package merge

import (
	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/encoding"
)

// FixtureItem is the YAML representation of a single dag.Item in a DAG
// fixture. Bodies are kept flat (no nested mappings) deliberately: yaml.v2
// decodes a nested mapping as map[interface{}]interface{}, which dag.Body's
// bodyLike helper doesn't recognize, so a nested fixture body would silently
// fail equality checks rather than merge as expected.
type FixtureItem struct {
	ID        string                 `yaml:"id"`
	Version   string                 `yaml:"version"`
	Parents   []string               `yaml:"parents"`
	Tombstone bool                   `yaml:"tombstone"`
	Body      map[string]interface{} `yaml:"body"`
}

// FixtureMerge names the pair of versions, both sharing ID, that a fixture
// should invoke the Merger on.
type FixtureMerge struct {
	ID string `yaml:"id"`
	X  string `yaml:"x"`
	Y  string `yaml:"y"`
}

// Fixture is the top-level shape of a merge fixture: a flat list of items
// (loaded into both perspectives' stores under the same versions, so that the
// fixture describes one shared history observed identically by X and Y prior
// to the merge under test) plus the merge invocation itself. It is consumed
// both by this package's own tests and by cmd/perspectivedb-merge.
type Fixture struct {
	Items []FixtureItem `yaml:"items"`
	Merge FixtureMerge  `yaml:"merge"`
}

// LoadFixture loads a YAML-described DAG fixture from path.
func LoadFixture(path string) (*Fixture, error) {
	fixture := &Fixture{}
	if err := encoding.LoadAndUnmarshalYAML(path, fixture); err != nil {
		return nil, err
	}
	return fixture, nil
}

// ToItem converts a FixtureItem into a dag.Item suitable for seeding a Tree.
func (f FixtureItem) ToItem() *dag.Item {
	body := make(dag.Body, len(f.Body))
	for k, v := range f.Body {
		body[k] = v
	}
	return &dag.Item{
		Header: dag.Header{
			ID:        []byte(f.ID),
			Version:   f.Version,
			Parents:   append([]string(nil), f.Parents...),
			Tombstone: f.Tombstone,
		},
		Body: body,
	}
}
