package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
)

var pathCmd = &cobra.Command{
	Use:   "path [fromID] [toID]",
	Short: "Find the shortest influence path between two skills",
	Long: `Path walks dependency, sequence, co-execution and improvement edges to find
the shortest chain from one skill to another. Tag co-membership alone does
not count as influence and is never traversed.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		format := outputFormatFromFlags(cmd)
		runPathCommand(ctx, args[0], args[1], format)
	},
}

func init() {
	pathCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(pathCmd)
}

func runPathCommand(ctx context.Context, from, to string, format OutputFormat) {
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

	path, found := q.FindPath(from, to)

	if format == JSONFormat {
		out := map[string]any{
			"from":  from,
			"to":    to,
			"path":  path,
			"found": found,
		}
		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to render path")
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
		if !found {
			os.Exit(1)
		}
		return
	}

	if !found {
		presenter.Warning(fmt.Sprintf("No path from %q to %q", from, to))
		os.Exit(1)
	}

	fmt.Printf("%s (%d hop(s))\n", strings.Join(path, " -> "), len(path)-1)
}
