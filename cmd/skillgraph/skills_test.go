package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

func TestSkillsOutputRenderTable(t *testing.T) {
	output := &SkillsOutput{
		Skills: []*graphtypes.Node{
			{ID: "extract", Name: "Extract", Phase: graphtypes.PhaseResearch, Tags: []string{"data", "etl"}, Leverage: 1.25, UsageCount: 3},
			{ID: "load", Name: "Load", Phase: graphtypes.PhaseOperate, Leverage: 0.75},
		},
		Format: TableFormat,
	}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "extract")
	assert.Contains(t, out, "data,etl")
	assert.Contains(t, out, "1.2500")
	assert.Contains(t, out, "load")
}

func TestSkillsOutputRenderTableEmpty(t *testing.T) {
	output := &SkillsOutput{Format: TableFormat}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))
	assert.Contains(t, buf.String(), "No skills match.")
}

func TestSkillsOutputRenderJSON(t *testing.T) {
	output := &SkillsOutput{
		Skills: []*graphtypes.Node{
			{ID: "extract", Name: "Extract", Phase: graphtypes.PhaseResearch},
		},
		Format: JSONFormat,
	}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, `"skills"`)
	assert.Contains(t, out, `"count": 1`)
	assert.Contains(t, out, `"extract"`)
}

func TestEdgesOutputRenderTable(t *testing.T) {
	output := &EdgesOutput{
		Edges: []*graphtypes.Edge{
			{Source: "extract", Target: "transform", Type: graphtypes.EdgeDependsOn, Weight: 1, Evidence: []string{"manifest"}},
			{Source: "transform", Target: "load", Type: graphtypes.EdgeSequence, Weight: 2, Evidence: []string{"run:1", "run:2", "run:3", "run:4"}},
		},
		Format: TableFormat,
	}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "depends_on")
	assert.Contains(t, out, "sequence")
	assert.Contains(t, out, "(+1 more)", "long evidence lists are summarized")
}

func TestEdgesOutputRenderTableEmpty(t *testing.T) {
	output := &EdgesOutput{Format: TableFormat}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))
	assert.Contains(t, buf.String(), "No edges match.")
}
