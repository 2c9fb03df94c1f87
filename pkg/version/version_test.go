package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Contains(t, info.GoVersion, "go", "runtime version is stamped at call time")
}

func graphBinaryInfo() Info {
	return Info{
		Version:   "0.3.0",
		GitCommit: "4f9c2d1",
		BuildTime: "2026-08-31T10:15:00Z",
		GoVersion: "go1.25.1",
	}
}

func TestInfoString(t *testing.T) {
	result := graphBinaryInfo().String()
	assert.Equal(t, "Version: 0.3.0, GitCommit: 4f9c2d1, BuildTime: 2026-08-31T10:15:00Z, GoVersion: go1.25.1", result)
}

func TestInfoJSON(t *testing.T) {
	info := graphBinaryInfo()

	jsonString, err := info.JSON()
	require.NoError(t, err)

	var parsed Info
	require.NoError(t, json.Unmarshal([]byte(jsonString), &parsed))
	assert.Equal(t, info, parsed)

	// field names are part of the CLI contract: skillgraph version --format json
	expected := `{
  "version": "0.3.0",
  "gitCommit": "4f9c2d1",
  "buildTime": "2026-08-31T10:15:00Z",
  "goVersion": "go1.25.1"
}`
	assert.Equal(t, expected, jsonString)
}
