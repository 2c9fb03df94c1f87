// Package registry provides access to the authoritative skill catalog.
// Skills are packaged as directories containing a SKILL.md file whose
// YAML frontmatter declares the graph-relevant metadata: phase, tags,
// version and dependencies. A flat YAML manifest is supported as an
// alternative source for teams that keep the catalog in one file.
package registry

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// ErrNotFound is returned when a skill id is absent from the registry.
var ErrNotFound = errors.New("skill not found")

// Registry lists and resolves skill definitions.
type Registry interface {
	// List returns every definition in the catalog, re-reading the
	// backing source so callers always see the current state.
	List(ctx context.Context) ([]sources.SkillDefinition, error)
	// Get resolves a single skill by id, returning ErrNotFound when the
	// catalog no longer contains it.
	Get(ctx context.Context, id string) (sources.SkillDefinition, error)
}

func findDefinition(defs []sources.SkillDefinition, id string) (sources.SkillDefinition, error) {
	for _, def := range defs {
		if def.ID == id {
			return def, nil
		}
	}
	return sources.SkillDefinition{}, errors.Wrapf(ErrNotFound, "skill %q", id)
}
