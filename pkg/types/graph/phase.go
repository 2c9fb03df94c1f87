package graph

import (
	"github.com/pkg/errors"
)

// Phase identifies the workflow stage a skill belongs to. The enumeration is
// fixed; the registry rejects definitions outside it.
type Phase string

const (
	PhaseResearch  Phase = "research"
	PhaseDesign    Phase = "design"
	PhaseImplement Phase = "implement"
	PhaseReview    Phase = "review"
	PhaseOperate   Phase = "operate"

	// DefaultPhase is assigned to definitions that omit a phase.
	DefaultPhase = PhaseImplement
)

// AllPhases returns every phase in canonical order.
func AllPhases() []Phase {
	return []Phase{PhaseResearch, PhaseDesign, PhaseImplement, PhaseReview, PhaseOperate}
}

// Valid reports whether p is one of the fixed phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseResearch, PhaseDesign, PhaseImplement, PhaseReview, PhaseOperate:
		return true
	}
	return false
}

func (p Phase) String() string {
	return string(p)
}

// ParsePhase converts a string into a Phase, rejecting anything outside the
// fixed enumeration.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", errors.Errorf("unknown phase %q", s)
	}
	return p, nil
}
