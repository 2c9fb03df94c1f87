package graph

import "time"

// PhaseGapStatus distinguishes phases with no skills at all from phases
// below the configured soft minimum.
type PhaseGapStatus string

const (
	PhaseGapEmpty  PhaseGapStatus = "empty"
	PhaseGapSparse PhaseGapStatus = "sparse"
)

// UnusedSkill is a skill that never ran, or last ran before the staleness
// threshold.
type UnusedSkill struct {
	ID         string     `json:"id"`
	UsageCount int        `json:"usageCount"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// WeakCluster is a cluster whose cohesion fell below the threshold.
type WeakCluster struct {
	Tag         string  `json:"tag"`
	MemberCount int     `json:"memberCount"`
	Cohesion    float64 `json:"cohesion"`
}

// PhaseGap flags a workflow phase with too few skills.
type PhaseGap struct {
	Phase      Phase          `json:"phase"`
	SkillCount int            `json:"skillCount"`
	Status     PhaseGapStatus `json:"status"`
}

// GapReport is the full set of structural findings for one built graph.
// Findings are recorded, never raised as errors.
type GapReport struct {
	MissingDependencies []MissingDependency `json:"missingDependencies"`
	IsolatedSkills      []string            `json:"isolatedSkills"`
	UnusedSkills        []UnusedSkill       `json:"unusedSkills"`
	WeakClusters        []WeakCluster       `json:"weakClusters"`
	PhaseGaps           []PhaseGap          `json:"phaseGaps"`
	// UnusedAfterDays is the staleness threshold the unused list was
	// computed with.
	UnusedAfterDays int `json:"unusedAfterDays"`
}

// Total returns the number of findings across all categories.
func (r *GapReport) Total() int {
	return len(r.MissingDependencies) + len(r.IsolatedSkills) + len(r.UnusedSkills) + len(r.WeakClusters) + len(r.PhaseGaps)
}
