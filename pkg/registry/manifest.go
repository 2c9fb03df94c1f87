package registry

import (
	"context"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// manifestFile is the on-disk layout of a catalog manifest.
type manifestFile struct {
	Skills []manifestEntry `yaml:"skills"`
}

type manifestEntry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Phase        string   `yaml:"phase"`
	Tags         []string `yaml:"tags"`
	Version      string   `yaml:"version"`
	Dependencies []string `yaml:"dependencies"`
}

// Manifest reads the whole catalog from a single YAML file. Unlike
// directory discovery, a manifest is one authored document, so a
// duplicate id or invalid entry fails the load rather than being
// skipped.
type Manifest struct {
	path string
}

// NewManifest creates a manifest-backed registry for the given file.
func NewManifest(path string) *Manifest {
	return &Manifest{path: path}
}

// List parses the manifest and returns its definitions sorted by id.
func (m *Manifest) List(ctx context.Context) ([]sources.SkillDefinition, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", m.path)
	}

	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %s", m.path)
	}

	seen := make(map[string]bool, len(file.Skills))
	defs := make([]sources.SkillDefinition, 0, len(file.Skills))
	for i, entry := range file.Skills {
		def, err := entry.toDefinition()
		if err != nil {
			return nil, errors.Wrapf(err, "manifest %s: skill entry %d", m.path, i)
		}
		if seen[def.ID] {
			return nil, errors.Errorf("manifest %s: duplicate skill id %q", m.path, def.ID)
		}
		seen[def.ID] = true
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// Get resolves a single skill definition by id.
func (m *Manifest) Get(ctx context.Context, id string) (sources.SkillDefinition, error) {
	defs, err := m.List(ctx)
	if err != nil {
		return sources.SkillDefinition{}, err
	}
	return findDefinition(defs, id)
}

func (e manifestEntry) toDefinition() (sources.SkillDefinition, error) {
	if e.ID == "" {
		return sources.SkillDefinition{}, errors.New("skill id is required")
	}
	phase := graphtypes.DefaultPhase
	if e.Phase != "" {
		var err error
		phase, err = graphtypes.ParsePhase(e.Phase)
		if err != nil {
			return sources.SkillDefinition{}, err
		}
	}

	name := e.Name
	if name == "" {
		name = e.ID
	}
	return sources.SkillDefinition{
		ID:           e.ID,
		Name:         name,
		Description:  e.Description,
		Phase:        phase,
		Tags:         normalizeTags(e.Tags),
		Version:      e.Version,
		Dependencies: append([]string(nil), e.Dependencies...),
	}, nil
}
