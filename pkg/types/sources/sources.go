// Package sources defines the records consumed from the three external
// collaborators: the skill registry, the run archive and the improvement
// log. The graph build derives everything else from these.
package sources

import (
	"time"

	"github.com/google/uuid"

	"github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// SkillDefinition is one authoritative registry entry.
type SkillDefinition struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Phase        graph.Phase `json:"phase"`
	Tags         []string    `json:"tags,omitempty"`
	Version      string      `json:"version,omitempty"`
	Dependencies []string    `json:"declaredDependencies,omitempty"`
}

// RunRecord is one historical execution: which skills ran, in order, and
// when the run started.
type RunRecord struct {
	ID        string    `json:"runId"`
	SkillIDs  []string  `json:"orderedSkillIds"`
	StartedAt time.Time `json:"timestamp"`
}

// NewRunRecord builds a run record, generating an id when none is given.
func NewRunRecord(id string, skillIDs []string, startedAt time.Time) RunRecord {
	if id == "" {
		id = uuid.NewString()
	}
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return RunRecord{
		ID:        id,
		SkillIDs:  append([]string(nil), skillIDs...),
		StartedAt: startedAt,
	}
}

// ImprovementEvent records that a revision of one skill was triggered by
// observations of another skill's execution.
type ImprovementEvent struct {
	ID         string    `json:"id"`
	ImprovedID string    `json:"improvedSkillId"`
	TriggerID  string    `json:"triggeringSkillId"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"timestamp"`
}

// NewImprovementEvent builds an improvement event with a generated id.
func NewImprovementEvent(improvedID, triggerID, note string) ImprovementEvent {
	return ImprovementEvent{
		ID:         uuid.NewString(),
		ImprovedID: improvedID,
		TriggerID:  triggerID,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	}
}
