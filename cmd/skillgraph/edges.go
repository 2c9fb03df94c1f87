package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// EdgesConfig holds configuration for the edges command
type EdgesConfig struct {
	Type   string
	Format OutputFormat
}

// NewEdgesConfig creates a new EdgesConfig with default values
func NewEdgesConfig() *EdgesConfig {
	return &EdgesConfig{}
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List edges in the graph",
	Long: `Edges lists every inferred relationship in the current snapshot, optionally
narrowed to one edge type (depends_on, tag_cluster, sequence, co_executed,
improved_by). Undirected edges appear once with their endpoints in id order.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getEdgesConfigFromFlags(cmd)
		runEdgesCommand(ctx, config)
	},
}

func init() {
	edgesCmd.Flags().String("type", "", "Only list edges of this type")
	edgesCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(edgesCmd)
}

// getEdgesConfigFromFlags extracts edges configuration from command flags
func getEdgesConfigFromFlags(cmd *cobra.Command) *EdgesConfig {
	config := NewEdgesConfig()

	if typeStr, err := cmd.Flags().GetString("type"); err == nil {
		config.Type = typeStr
	}
	config.Format = outputFormatFromFlags(cmd)

	return config
}

func runEdgesCommand(ctx context.Context, config *EdgesConfig) {
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

	edges := q.Edges()
	if config.Type != "" {
		typ, err := graphtypes.ParseEdgeType(config.Type)
		if err != nil {
			presenter.Error(err, "Invalid --type value")
			os.Exit(1)
		}
		edges = q.EdgesByType(typ)
	}

	output := &EdgesOutput{Edges: edges, Format: config.Format}
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "Failed to render edge list")
		os.Exit(1)
	}
}

// EdgesOutput represents the edge list output
type EdgesOutput struct {
	Edges  []*graphtypes.Edge
	Format OutputFormat
}

// Render formats and renders the edge list to the specified writer
func (o *EdgesOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *EdgesOutput) renderJSON(w io.Writer) error {
	type jsonOutput struct {
		Edges []*graphtypes.Edge `json:"edges"`
		Count int                `json:"count"`
	}

	jsonData, err := json.MarshalIndent(jsonOutput{Edges: o.Edges, Count: len(o.Edges)}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func (o *EdgesOutput) renderTable(w io.Writer) error {
	if len(o.Edges) == 0 {
		fmt.Fprintln(w, "No edges match.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTARGET\tTYPE\tWEIGHT\tEVIDENCE")
	fmt.Fprintln(tw, "------\t------\t----\t------\t--------")
	for _, edge := range o.Edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n",
			edge.Source,
			edge.Target,
			edge.Type,
			edge.Weight,
			summarizeEvidence(edge.Evidence),
		)
	}
	return tw.Flush()
}
