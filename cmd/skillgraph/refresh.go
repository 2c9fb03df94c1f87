package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/query"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [skillID]",
	Short: "Re-derive the edges of one skill and rescore the graph",
	Long: `Refresh re-reads one skill's registry metadata and rebuilds only the edges
touching it, then rescores the whole graph warm-started from the previous
scores. Use it after editing a single SKILL.md instead of a full rebuild.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runRefreshCommand(ctx, args[0])
	},
}

func init() {
	rootCmd.AddCommand(withTracing(refreshCmd))
}

func runRefreshCommand(ctx context.Context, id string) {
	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer svc.Close()

	loadSnapshot(ctx, svc)

	snap, err := svc.RefreshNode(ctx, id)
	if err != nil {
		if errors.Is(err, graphstore.ErrNotFound) {
			presenter.Error(err, fmt.Sprintf("Skill %q is not part of the graph", id))
			presenter.Info("Run 'skillgraph build' to pick up newly registered skills")
		} else {
			presenter.Error(err, fmt.Sprintf("Failed to refresh skill %q", id))
		}
		os.Exit(1)
	}

	detail, err := query.New(snap).Node(id)
	if err != nil {
		presenter.Error(err, "Failed to read the refreshed skill")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Skill %q refreshed", id))
	presenter.Info(fmt.Sprintf("%d edge(s) now touch %s, leverage %.4f", len(detail.Edges), id, detail.Node.Leverage))
}
