package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/query"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the skill graph from the registry, run archive and improvement log",
	Long: `Build reads every skill definition, every recorded run and every improvement
event, infers the full edge set, scores leverage, derives tag clusters and
gap findings, and persists the result as a versioned snapshot.

A failed build leaves the previous snapshot untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runBuildCommand(ctx)
	},
}

func init() {
	rootCmd.AddCommand(withTracing(buildCmd))
}

func runBuildCommand(ctx context.Context) {
	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer svc.Close()

	snap, err := svc.Build(ctx)
	if err != nil {
		presenter.Error(err, "Failed to build the skill graph")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Graph built and persisted to %s", svc.SnapshotPath()))
	presenter.Stats(graphStats(query.New(snap).Stats()))

	if total := snap.Gaps.Total(); total > 0 {
		presenter.Warning(fmt.Sprintf("%d structural finding(s); run 'skillgraph gaps' for details", total))
	}
}
