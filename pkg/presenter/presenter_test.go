package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	presenter := New()
	assert.NotNil(t, presenter)
	assert.Equal(t, os.Stdout, presenter.output)
	assert.Equal(t, os.Stderr, presenter.errorOutput)
	assert.False(t, presenter.quiet)
}

func TestNewWithOptions(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	assert.Equal(t, &output, presenter.output)
	assert.Equal(t, &errorOutput, presenter.errorOutput)
	assert.Equal(t, ColorNever, presenter.colorMode)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name            string
		noColor         string
		skillgraphColor string
		expected        ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"SKILLGRAPH_COLOR always", "", "always", ColorAlways},
		{"SKILLGRAPH_COLOR force", "", "force", ColorAlways},
		{"SKILLGRAPH_COLOR never", "", "never", ColorNever},
		{"SKILLGRAPH_COLOR off", "", "off", ColorNever},
		{"SKILLGRAPH_COLOR auto", "", "auto", ColorAuto},
		{"default", "", "", ColorAuto},
		{"invalid skillgraph color", "", "invalid", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("SKILLGRAPH_COLOR")

			// Set test environment
			if tt.noColor != "" {
				os.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.skillgraphColor != "" {
				os.Setenv("SKILLGRAPH_COLOR", tt.skillgraphColor)
			}

			result := detectColorMode()
			assert.Equal(t, tt.expected, result)

			// Cleanup
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("SKILLGRAPH_COLOR")
		})
	}
}

func TestError(t *testing.T) {
	var errorOutput bytes.Buffer
	presenter := NewWithOptions(nil, &errorOutput, ColorNever)

	// Test with context
	err := errors.New("test error")
	presenter.Error(err, "test context")

	output := errorOutput.String()
	assert.Contains(t, output, "[ERROR]")
	assert.Contains(t, output, "test context")
	assert.Contains(t, output, "test error")

	// Test without context
	errorOutput.Reset()
	presenter.Error(err, "")

	output = errorOutput.String()
	assert.Contains(t, output, "[ERROR]")
	assert.Contains(t, output, "test error")
	assert.NotContains(t, output, "test context")

	// Test nil error
	errorOutput.Reset()
	presenter.Error(nil, "context")
	assert.Empty(t, errorOutput.String())
}

func TestSuccess(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Success("Operation completed")

	result := output.String()
	assert.Contains(t, result, "✓")
	assert.Contains(t, result, "Operation completed")
}

func TestSuccessQuietMode(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)
	presenter.SetQuiet(true)

	presenter.Success("Operation completed")

	assert.Empty(t, output.String())
}

func TestWarning(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Warning("This is a warning")

	result := output.String()
	assert.Contains(t, result, "⚠")
	assert.Contains(t, result, "This is a warning")
}

func TestInfo(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Info("Information message")

	result := output.String()
	assert.Contains(t, result, "Information message")
	assert.NotContains(t, result, "[INFO]") // Info doesn't have prefix
}

func TestInfoQuietMode(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)
	presenter.SetQuiet(true)

	presenter.Info("Information message")

	assert.Empty(t, output.String())
}

func TestSection(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Section("Test Section")

	result := output.String()
	lines := strings.Split(strings.TrimSpace(result), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t, "Test Section", lines[0])
	assert.Equal(t, strings.Repeat("-", len("Test Section")), lines[1])
}

func TestStats(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	stats := &GraphStats{
		Nodes:       12,
		Edges:       30,
		EdgesByType: map[string]int{"sequence": 18, "depends_on": 8, "co_executed": 4},
		Clusters:    3,
		Density:     0.227,
		Iterations:  24,
		Converged:   true,
		BuiltAt:     time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	presenter.Stats(stats)

	result := output.String()
	assert.Contains(t, result, "[Graph] Nodes: 12 | Edges: 30 | Clusters: 3 | Density: 0.227")
	// Edge types come out sorted
	assert.Contains(t, result, "[Edges] co_executed: 4 | depends_on: 8 | sequence: 18")
	assert.Contains(t, result, "[Scoring] Iterations: 24 (converged)")
	assert.Contains(t, result, "2025-06-01T10:00:00Z")
}

func TestStatsNotConverged(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Stats(&GraphStats{Nodes: 2, Iterations: 100, Converged: false})

	assert.Contains(t, output.String(), "hit iteration cap")
}

func TestStatsNil(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Stats(nil)

	assert.Empty(t, output.String())
}

func TestStatsQuietMode(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)
	presenter.SetQuiet(true)

	presenter.Stats(&GraphStats{Nodes: 12})

	assert.Empty(t, output.String())
}

func TestSeparator(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	presenter.Separator()

	result := output.String()
	assert.Contains(t, result, strings.Repeat("-", 60))
}

func TestQuietMode(t *testing.T) {
	presenter := New()

	assert.False(t, presenter.IsQuiet())

	presenter.SetQuiet(true)
	assert.True(t, presenter.IsQuiet())

	presenter.SetQuiet(false)
	assert.False(t, presenter.IsQuiet())
}

func TestColorModeConfiguration(t *testing.T) {
	// Test ColorNever disables colors
	presenter := NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, ColorNever)
	assert.Equal(t, ColorNever, presenter.colorMode)

	// Test ColorAlways enables colors
	oldNoColor := color.NoColor
	presenter = NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, ColorAlways)
	assert.Equal(t, ColorAlways, presenter.colorMode)

	// Restore original color setting
	color.NoColor = oldNoColor
}

func TestGlobalFunctions(t *testing.T) {
	// Save original global presenter
	originalPresenter := defaultPresenter

	// Create a presenter with captured output
	var output, errorOutput bytes.Buffer
	testPresenter := NewWithOptions(&output, &errorOutput, ColorNever)
	defaultPresenter = testPresenter

	// Restore original presenter after test
	defer func() {
		defaultPresenter = originalPresenter
	}()

	// Test Error function
	output.Reset()
	errorOutput.Reset()
	Error(errors.New("test error"), "error context")
	assert.Contains(t, errorOutput.String(), "[ERROR]")
	assert.Contains(t, errorOutput.String(), "error context")

	// Test Success function
	output.Reset()
	Success("success message")
	assert.Contains(t, output.String(), "✓")
	assert.Contains(t, output.String(), "success message")

	// Test Warning function
	output.Reset()
	Warning("warning message")
	assert.Contains(t, output.String(), "⚠")

	// Test Info function
	output.Reset()
	Info("info message")
	assert.Contains(t, output.String(), "info message")

	// Test Section function
	output.Reset()
	Section("Test Section")
	assert.Contains(t, output.String(), "Test Section")
	assert.Contains(t, output.String(), "----------")

	// Test Stats function
	output.Reset()
	Stats(&GraphStats{Nodes: 12, Edges: 30, Clusters: 3})
	assert.Contains(t, output.String(), "[Graph] Nodes: 12")

	// Test Separator function
	output.Reset()
	Separator()
	assert.Contains(t, output.String(), "----")

	// Test quiet mode functions
	SetQuiet(true)
	assert.True(t, IsQuiet())

	// Verify quiet mode works
	output.Reset()
	Info("should not appear")
	assert.Empty(t, output.String())

	SetQuiet(false)
	assert.False(t, IsQuiet())
}
