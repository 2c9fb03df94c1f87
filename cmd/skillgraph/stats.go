package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/query"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics for the current graph",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		format := outputFormatFromFlags(cmd)
		runStatsCommand(ctx, format)
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(statsCmd)
}

func runStatsCommand(ctx context.Context, format OutputFormat) {
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

	s := q.Stats()

	if format == JSONFormat {
		jsonData, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to render stats")
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
		return
	}

	presenter.Stats(graphStats(s))
	if s.Missing > 0 {
		presenter.Warning(fmt.Sprintf("%d declared dependency target(s) have no matching skill", s.Missing))
	}
}

// graphStats adapts query statistics to the presenter's display type.
func graphStats(s query.Stats) *presenter.GraphStats {
	byType := make(map[string]int, len(s.EdgesByType))
	for edgeType, count := range s.EdgesByType {
		byType[string(edgeType)] = count
	}
	return &presenter.GraphStats{
		Nodes:       s.Nodes,
		Edges:       s.Edges,
		EdgesByType: byType,
		Clusters:    s.Clusters,
		Density:     s.Density,
		Iterations:  s.Scoring.Iterations,
		Converged:   s.Scoring.Converged,
		BuiltAt:     s.BuiltAt,
	}
}
