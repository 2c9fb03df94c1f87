package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/query"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// OutputFormat defines the format of the output
type OutputFormat int

const (
	TableFormat OutputFormat = iota
	JSONFormat
)

// outputFormatFromFlags resolves the shared --json flag into an OutputFormat.
func outputFormatFromFlags(cmd *cobra.Command) OutputFormat {
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil && jsonOutput {
		return JSONFormat
	}
	return TableFormat
}

// ShowConfig holds configuration for the show command
type ShowConfig struct {
	Format OutputFormat
}

var showCmd = &cobra.Command{
	Use:   "show [skillID]",
	Short: "Show one skill with its scores and every edge touching it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := &ShowConfig{Format: outputFormatFromFlags(cmd)}
		runShowCommand(ctx, args[0], config)
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(showCmd)
}

func runShowCommand(ctx context.Context, id string, config *ShowConfig) {
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

	detail, err := q.Node(id)
	if err != nil {
		if errors.Is(err, graphstore.ErrNotFound) {
			presenter.Error(err, fmt.Sprintf("Skill %q is not part of the graph", id))
			presenter.Info("Use 'skillgraph top' or 'skillgraph stats' to see what the graph contains")
		} else {
			presenter.Error(err, fmt.Sprintf("Failed to look up skill %q", id))
		}
		os.Exit(1)
	}

	neighbors, err := q.Neighbors(id, query.DirectionBoth, nil)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("Failed to look up neighbors of %q", id))
		os.Exit(1)
	}

	output := &ShowOutput{Detail: detail, Neighbors: neighbors, Format: config.Format}
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "Failed to render skill")
		os.Exit(1)
	}
}

// ShowOutput represents the output for a single skill
type ShowOutput struct {
	Detail    *query.NodeDetail
	Neighbors []*graphtypes.Node
	Format    OutputFormat
}

// Render formats and renders the skill detail to the specified writer
func (o *ShowOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *ShowOutput) renderJSON(w io.Writer) error {
	type jsonOutput struct {
		Node      *graphtypes.Node   `json:"node"`
		Edges     []*graphtypes.Edge `json:"edges"`
		Neighbors []*graphtypes.Node `json:"neighbors"`
	}

	jsonData, err := json.MarshalIndent(jsonOutput{
		Node:      o.Detail.Node,
		Edges:     o.Detail.Edges,
		Neighbors: o.Neighbors,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func (o *ShowOutput) renderTable(w io.Writer) error {
	n := o.Detail.Node

	fmt.Fprintf(w, "ID:          %s\n", n.ID)
	fmt.Fprintf(w, "Name:        %s\n", n.Name)
	if n.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", n.Description)
	}
	fmt.Fprintf(w, "Phase:       %s\n", n.Phase)
	if len(n.Tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(n.Tags, ", "))
	}
	if n.Version != "" {
		fmt.Fprintf(w, "Version:     %s\n", n.Version)
	}
	fmt.Fprintf(w, "Leverage:    %.4f\n", n.Leverage)
	fmt.Fprintf(w, "Usage:       %d run(s)", n.UsageCount)
	if n.LastUsedAt != nil {
		fmt.Fprintf(w, ", last used %s", n.LastUsedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Degree:      %d in / %d out\n", n.InDegree, n.OutDegree)
	fmt.Fprintln(w)

	if len(o.Detail.Edges) == 0 {
		fmt.Fprintln(w, "No edges touch this skill.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTARGET\tTYPE\tWEIGHT\tEVIDENCE")
	fmt.Fprintln(tw, "------\t------\t----\t------\t--------")
	for _, edge := range o.Detail.Edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n",
			edge.Source,
			edge.Target,
			edge.Type,
			edge.Weight,
			summarizeEvidence(edge.Evidence),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(o.Neighbors) > 0 {
		ids := make([]string, 0, len(o.Neighbors))
		for _, n := range o.Neighbors {
			ids = append(ids, n.ID)
		}
		fmt.Fprintf(w, "\nNeighbors: %s\n", strings.Join(ids, ", "))
	}
	return nil
}

// summarizeEvidence keeps edge tables readable for heavily evidenced edges.
func summarizeEvidence(evidence []string) string {
	const maxShown = 3
	if len(evidence) <= maxShown {
		return strings.Join(evidence, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(evidence[:maxShown], ", "), len(evidence)-maxShown)
}
