package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
)

// RemoveConfig holds configuration for the remove command
type RemoveConfig struct {
	NoConfirm bool
}

// NewRemoveConfig creates a new RemoveConfig with default values
func NewRemoveConfig() *RemoveConfig {
	return &RemoveConfig{
		NoConfirm: false,
	}
}

var removeCmd = &cobra.Command{
	Use:   "remove [skillID]",
	Short: "Remove a skill and every edge referencing it from the graph",
	Long: `Remove deletes one skill from the graph together with every edge that
references it. The skill's files and its run history are left untouched;
the next build will re-add the skill if it is still registered.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getRemoveConfigFromFlags(cmd)
		runRemoveCommand(ctx, args[0], config)
	},
}

func init() {
	removeDefaults := NewRemoveConfig()
	removeCmd.Flags().Bool("no-confirm", removeDefaults.NoConfirm, "Skip confirmation prompt")

	rootCmd.AddCommand(withTracing(removeCmd))
}

// getRemoveConfigFromFlags extracts remove configuration from command flags
func getRemoveConfigFromFlags(cmd *cobra.Command) *RemoveConfig {
	config := NewRemoveConfig()

	if noConfirm, err := cmd.Flags().GetBool("no-confirm"); err == nil {
		config.NoConfirm = noConfirm
	}

	return config
}

func runRemoveCommand(ctx context.Context, id string, config *RemoveConfig) {
	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer svc.Close()

	loadSnapshot(ctx, svc)

	if !config.NoConfirm {
		answer := presenter.Prompt(fmt.Sprintf("Remove skill %q from the graph?", id), "y", "N")
		if !strings.EqualFold(answer, "y") {
			presenter.Info("Removal cancelled")
			return
		}
	}

	snap, err := svc.RemoveNode(ctx, id)
	if err != nil {
		if errors.Is(err, graphstore.ErrNotFound) {
			presenter.Error(err, fmt.Sprintf("Skill %q is not part of the graph", id))
		} else {
			presenter.Error(err, fmt.Sprintf("Failed to remove skill %q", id))
		}
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Skill %q removed from the graph", id))
	presenter.Info(fmt.Sprintf("%d skill(s) and %d edge(s) remain", snap.Graph.NodeCount(), snap.Graph.EdgeCount()))
}
