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

// TopConfig holds configuration for the top command
type TopConfig struct {
	Count  int
	Format OutputFormat
}

// NewTopConfig creates a new TopConfig with default values
func NewTopConfig() *TopConfig {
	return &TopConfig{
		Count: 10,
	}
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the highest-leverage skills",
	Long: `Top lists the skills the rest of the catalog depends on most, ranked by
their leverage score. A high score means many well-connected skills reach
this one through dependency, sequence, co-execution or improvement edges.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getTopConfigFromFlags(cmd)
		runTopCommand(ctx, config)
	},
}

func init() {
	topDefaults := NewTopConfig()
	topCmd.Flags().IntP("count", "n", topDefaults.Count, "Number of skills to list")
	topCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(topCmd)
}

// getTopConfigFromFlags extracts top configuration from command flags
func getTopConfigFromFlags(cmd *cobra.Command) *TopConfig {
	config := NewTopConfig()

	if count, err := cmd.Flags().GetInt("count"); err == nil {
		config.Count = count
	}
	config.Format = outputFormatFromFlags(cmd)

	return config
}

func runTopCommand(ctx context.Context, config *TopConfig) {
	if config.Count < 1 {
		presenter.Error(errors.New("invalid count"), "--count must be at least 1")
		os.Exit(1)
	}

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

	output := &TopOutput{Skills: q.HighLeverageSkills(config.Count), Format: config.Format}
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "Failed to render leverage ranking")
		os.Exit(1)
	}
}

// TopOutput represents the leverage ranking output
type TopOutput struct {
	Skills []*graphtypes.Node
	Format OutputFormat
}

// Render formats and renders the ranking to the specified writer
func (o *TopOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *TopOutput) renderJSON(w io.Writer) error {
	type jsonOutput struct {
		Skills []*graphtypes.Node `json:"skills"`
	}

	jsonData, err := json.MarshalIndent(jsonOutput{Skills: o.Skills}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func (o *TopOutput) renderTable(w io.Writer) error {
	if len(o.Skills) == 0 {
		fmt.Fprintln(w, "The graph has no skills.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tNAME\tPHASE\tLEVERAGE\tIN\tOUT\tUSES")
	fmt.Fprintln(tw, "----\t--\t----\t-----\t--------\t--\t---\t----")
	for i, n := range o.Skills {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.4f\t%d\t%d\t%d\n",
			i+1,
			n.ID,
			n.Name,
			n.Phase,
			n.Leverage,
			n.InDegree,
			n.OutDegree,
			n.UsageCount,
		)
	}
	return tw.Flush()
}
