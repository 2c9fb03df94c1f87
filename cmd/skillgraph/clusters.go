package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters [tag]",
	Short: "List tag clusters with cohesion, or show one cluster in detail",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		format := outputFormatFromFlags(cmd)
		tag := ""
		if len(args) == 1 {
			tag = args[0]
		}
		runClustersCommand(ctx, tag, format)
	},
}

func init() {
	clustersCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(clustersCmd)
}

func runClustersCommand(ctx context.Context, tag string, format OutputFormat) {
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

	var clusters []*graphtypes.Cluster
	if tag != "" {
		cluster, err := q.ClusterByTag(tag)
		if err != nil {
			if errors.Is(err, graphstore.ErrNotFound) {
				presenter.Error(err, fmt.Sprintf("No cluster for tag %q; clusters need at least two skills sharing a tag", tag))
			} else {
				presenter.Error(err, fmt.Sprintf("Failed to look up cluster %q", tag))
			}
			os.Exit(1)
		}
		clusters = []*graphtypes.Cluster{cluster}
	} else {
		clusters = q.Clusters()
	}

	output := &ClustersOutput{Clusters: clusters, Detailed: tag != "", Format: format}
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "Failed to render clusters")
		os.Exit(1)
	}
}

// ClustersOutput represents the cluster listing output
type ClustersOutput struct {
	Clusters []*graphtypes.Cluster
	Detailed bool
	Format   OutputFormat
}

// Render formats and renders the clusters to the specified writer
func (o *ClustersOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *ClustersOutput) renderJSON(w io.Writer) error {
	var payload any
	if o.Detailed && len(o.Clusters) == 1 {
		payload = o.Clusters[0]
	} else {
		payload = map[string]any{
			"clusters": o.Clusters,
			"count":    len(o.Clusters),
		}
	}

	jsonData, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func (o *ClustersOutput) renderTable(w io.Writer) error {
	if len(o.Clusters) == 0 {
		fmt.Fprintln(w, "No clusters. Clusters appear once two or more skills share a tag.")
		return nil
	}

	if o.Detailed {
		c := o.Clusters[0]
		fmt.Fprintf(w, "Tag:      %s\n", c.Tag)
		fmt.Fprintf(w, "Members:  %d\n", len(c.Members))
		fmt.Fprintf(w, "Cohesion: %.2f", c.Cohesion)
		if c.Weak() {
			fmt.Fprintf(w, " (weak, below %.2f)", graphtypes.WeakCohesionThreshold)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)
		for _, id := range c.Members {
			fmt.Fprintf(w, "  %s\n", id)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tMEMBERS\tCOHESION\tWEAK")
	fmt.Fprintln(tw, "---\t-------\t--------\t----")
	for _, c := range o.Clusters {
		weak := ""
		if c.Weak() {
			weak = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n",
			c.Tag,
			summarizeMembers(c.Members),
			c.Cohesion,
			weak,
		)
	}
	return tw.Flush()
}

// summarizeMembers keeps the cluster table readable for large clusters.
func summarizeMembers(members []string) string {
	const maxShown = 4
	if len(members) <= maxShown {
		return strings.Join(members, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(members[:maxShown], ", "), len(members)-maxShown)
}
