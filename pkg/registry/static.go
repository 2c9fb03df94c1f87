package registry

import (
	"context"
	"sort"

	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// Static is an in-memory registry, used by tests and by callers that
// assemble the catalog themselves.
type Static struct {
	defs []sources.SkillDefinition
}

// NewStatic creates a registry over a fixed set of definitions.
func NewStatic(defs ...sources.SkillDefinition) *Static {
	sorted := append([]sources.SkillDefinition(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Static{defs: sorted}
}

// List returns the definitions sorted by id.
func (s *Static) List(ctx context.Context) ([]sources.SkillDefinition, error) {
	return append([]sources.SkillDefinition(nil), s.defs...), nil
}

// Get resolves a single skill definition by id.
func (s *Static) Get(ctx context.Context, id string) (sources.SkillDefinition, error) {
	return findDefinition(s.defs, id)
}
