package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/jingkaihe/skillgraph/pkg/logger"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

const skillFileName = "SKILL.md"

// frontmatter is the YAML block at the top of each SKILL.md.
type frontmatter struct {
	Name         string   `mapstructure:"name"`
	Description  string   `mapstructure:"description"`
	Phase        string   `mapstructure:"phase"`
	Tags         []string `mapstructure:"tags"`
	Version      string   `mapstructure:"version"`
	Dependencies []string `mapstructure:"dependencies"`
}

// Discovery finds skill definitions in configured directories. Each
// skill is a subdirectory holding a SKILL.md; earlier directories take
// precedence when two declare the same skill name.
type Discovery struct {
	skillDirs      []string
	ignorePatterns []glob.Glob
	rawIgnores     []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithDefaultDirs initializes with default skill directories
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.skillDirs = []string{
			"./.skillgraph/skills",                          // Repo-local (highest precedence)
			filepath.Join(homeDir, ".skillgraph", "skills"), // User-global
		}
		return nil
	}
}

// WithIgnorePatterns skips skill directories whose base name matches any
// of the given glob patterns (e.g. "*-draft", "archive-*").
func WithIgnorePatterns(patterns ...string) Option {
	return func(d *Discovery) error {
		for _, pattern := range patterns {
			compiled, err := glob.Compile(pattern)
			if err != nil {
				return errors.Wrapf(err, "invalid ignore pattern %q", pattern)
			}
			d.ignorePatterns = append(d.ignorePatterns, compiled)
			d.rawIgnores = append(d.rawIgnores, pattern)
		}
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, err
		}
	} else {
		for _, opt := range opts {
			if err := opt(d); err != nil {
				return nil, err
			}
		}
	}

	return d, nil
}

// List scans the configured directories and returns every valid skill
// definition sorted by id. Directories with unreadable or invalid
// SKILL.md files are logged and skipped so one bad skill does not take
// the whole catalog down.
func (d *Discovery) List(ctx context.Context) ([]sources.SkillDefinition, error) {
	seen := make(map[string]bool)
	var defs []sources.SkillDefinition

	for _, dir := range d.skillDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())

			info, err := os.Stat(entryPath)
			if err != nil || !info.IsDir() {
				continue
			}
			if d.ignored(entry.Name()) {
				logger.G(ctx).WithField("directory", entryPath).Debug("Skipping ignored skill directory")
				continue
			}

			def, err := loadDefinition(filepath.Join(entryPath, skillFileName))
			if err != nil {
				logger.G(ctx).WithError(err).WithField("directory", entryPath).Warn("Skipping invalid skill")
				continue
			}
			if seen[def.ID] {
				continue
			}
			seen[def.ID] = true
			defs = append(defs, def)
		}
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// Get resolves a single skill definition by id.
func (d *Discovery) Get(ctx context.Context, id string) (sources.SkillDefinition, error) {
	defs, err := d.List(ctx)
	if err != nil {
		return sources.SkillDefinition{}, err
	}
	return findDefinition(defs, id)
}

// Dirs returns the configured skill directories.
func (d *Discovery) Dirs() []string {
	return d.skillDirs
}

func (d *Discovery) ignored(name string) bool {
	for _, pattern := range d.ignorePatterns {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}

// loadDefinition parses one SKILL.md into a definition.
func loadDefinition(path string) (sources.SkillDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return sources.SkillDefinition{}, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return sources.SkillDefinition{}, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return sources.SkillDefinition{}, errors.New("missing frontmatter")
	}

	var fm frontmatter
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fm,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return sources.SkillDefinition{}, errors.Wrap(err, "failed to create frontmatter decoder")
	}
	if err := decoder.Decode(metaData); err != nil {
		return sources.SkillDefinition{}, errors.Wrap(err, "failed to decode frontmatter")
	}

	return fm.toDefinition()
}

func (fm frontmatter) toDefinition() (sources.SkillDefinition, error) {
	if fm.Name == "" {
		return sources.SkillDefinition{}, errors.New("skill name is required in frontmatter")
	}
	if fm.Description == "" {
		return sources.SkillDefinition{}, errors.New("skill description is required in frontmatter")
	}
	phase := graphtypes.DefaultPhase
	if fm.Phase != "" {
		var err error
		phase, err = graphtypes.ParsePhase(fm.Phase)
		if err != nil {
			return sources.SkillDefinition{}, errors.Wrap(err, "invalid skill phase in frontmatter")
		}
	}

	return sources.SkillDefinition{
		ID:           fm.Name,
		Name:         fm.Name,
		Description:  fm.Description,
		Phase:        phase,
		Tags:         normalizeTags(fm.Tags),
		Version:      fm.Version,
		Dependencies: append([]string(nil), fm.Dependencies...),
	}, nil
}

// normalizeTags dedupes and sorts, preserving set semantics.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
