package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
)

// ExportConfig holds configuration for the export command
type ExportConfig struct {
	Output string
}

// NewExportConfig creates a new ExportConfig with default values
func NewExportConfig() *ExportConfig {
	return &ExportConfig{
		Output: "",
	}
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full graph document as JSON",
	Long: `Export writes the current snapshot as a versioned JSON document containing
every node, edge and cluster. The layout matches the on-disk snapshot file,
so an exported document can be inspected, diffed or archived as-is.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getExportConfigFromFlags(cmd)
		runExportCommand(ctx, config)
	},
}

func init() {
	exportDefaults := NewExportConfig()
	exportCmd.Flags().StringP("output", "o", exportDefaults.Output, "Write to a file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

// getExportConfigFromFlags extracts export configuration from command flags
func getExportConfigFromFlags(cmd *cobra.Command) *ExportConfig {
	config := NewExportConfig()

	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}

	return config
}

func runExportCommand(ctx context.Context, config *ExportConfig) {
	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer svc.Close()

	loadSnapshot(ctx, svc)

	q, err := svc.Query()
	if err != nil {
		presenter.Error(err, "Failed to query the graph")
		os.Exit(1)
	}

	jsonData, err := json.MarshalIndent(q.Document(), "", "  ")
	if err != nil {
		presenter.Error(errors.Wrap(err, "error generating JSON output"), "Failed to export the graph")
		os.Exit(1)
	}

	if config.Output == "" {
		fmt.Println(string(jsonData))
		return
	}

	if err := os.WriteFile(config.Output, jsonData, 0o644); err != nil {
		presenter.Error(err, "Failed to write export file")
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Exported graph to %s", config.Output))
}
