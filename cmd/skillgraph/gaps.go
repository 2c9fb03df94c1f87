package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// GapsConfig holds configuration for the gaps command
type GapsConfig struct {
	UnusedDays int
	Format     OutputFormat
}

// NewGapsConfig returns a GapsConfig with default values
func NewGapsConfig() *GapsConfig {
	return &GapsConfig{}
}

// getGapsConfigFromFlags extracts gaps configuration from command flags
func getGapsConfigFromFlags(cmd *cobra.Command) *GapsConfig {
	config := NewGapsConfig()
	if days, err := cmd.Flags().GetInt("unused-days"); err == nil {
		config.UnusedDays = days
	}
	config.Format = outputFormatFromFlags(cmd)
	return config
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Report structural findings: missing deps, isolated, unused, weak clusters, thin phases",
	Long: `Gaps reports everything the last build flagged as structurally suspect:
dependency declarations with no matching skill, skills no edge touches,
skills that have gone stale, clusters whose members barely interconnect,
and workflow phases with too few skills.

Findings are advisory. A graph with findings is still fully queryable.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getGapsConfigFromFlags(cmd)
		runGapsCommand(ctx, config)
	},
}

func init() {
	gapsCmd.Flags().Int("unused-days", 0, "Recompute the unused list with this staleness threshold (0 keeps the build-time threshold)")
	gapsCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(gapsCmd)
}

func runGapsCommand(ctx context.Context, config *GapsConfig) {
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

	// Copy the cached report so a threshold override never mutates the
	// loaded snapshot.
	report := *q.Gaps()
	if config.UnusedDays > 0 {
		report.UnusedSkills = q.UnusedSkills(config.UnusedDays)
		report.UnusedAfterDays = config.UnusedDays
	}

	if config.Format == TableFormat && report.Total() == 0 {
		presenter.Success("No structural findings. The graph looks healthy.")
		return
	}

	output := &GapsOutput{Report: &report, Format: config.Format}
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "Failed to render gap report")
		os.Exit(1)
	}
}

// GapsOutput represents the gap report output
type GapsOutput struct {
	Report *graphtypes.GapReport
	Format OutputFormat
}

// Render formats and renders the gap report to the specified writer
func (o *GapsOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *GapsOutput) renderJSON(w io.Writer) error {
	jsonData, err := json.MarshalIndent(o.Report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func (o *GapsOutput) renderTable(w io.Writer) error {
	r := o.Report

	fmt.Fprintf(w, "%d structural finding(s)\n\n", r.Total())

	if len(r.MissingDependencies) > 0 {
		fmt.Fprintf(w, "Missing dependencies (%d):\n", len(r.MissingDependencies))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SKILL\tMISSING DEPENDENCY")
		fmt.Fprintln(tw, "-----\t------------------")
		for _, dep := range r.MissingDependencies {
			fmt.Fprintf(tw, "%s\t%s\n", dep.SourceID, dep.TargetID)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(r.IsolatedSkills) > 0 {
		fmt.Fprintf(w, "Isolated skills (%d):\n", len(r.IsolatedSkills))
		for _, id := range r.IsolatedSkills {
			fmt.Fprintf(w, "  %s\n", id)
		}
		fmt.Fprintln(w)
	}

	if len(r.UnusedSkills) > 0 {
		fmt.Fprintf(w, "Unused skills (%d, staleness threshold %d day(s)):\n", len(r.UnusedSkills), r.UnusedAfterDays)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRUNS\tLAST USED")
		fmt.Fprintln(tw, "--\t----\t---------")
		for _, u := range r.UnusedSkills {
			lastUsed := "never"
			if u.LastUsedAt != nil {
				lastUsed = u.LastUsedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", u.ID, u.UsageCount, lastUsed)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(r.WeakClusters) > 0 {
		fmt.Fprintf(w, "Weak clusters (%d):\n", len(r.WeakClusters))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TAG\tMEMBERS\tCOHESION")
		fmt.Fprintln(tw, "---\t-------\t--------")
		for _, c := range r.WeakClusters {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\n", c.Tag, c.MemberCount, c.Cohesion)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(r.PhaseGaps) > 0 {
		fmt.Fprintf(w, "Phase coverage (%d):\n", len(r.PhaseGaps))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PHASE\tSKILLS\tSTATUS")
		fmt.Fprintln(tw, "-----\t------\t------")
		for _, p := range r.PhaseGaps {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Phase, p.SkillCount, p.Status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	return nil
}
