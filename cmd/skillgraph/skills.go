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

	"github.com/jingkaihe/skillgraph/pkg/presenter"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// SkillsConfig holds configuration for the skills command
type SkillsConfig struct {
	Phase  string
	Tag    string
	Format OutputFormat
}

// NewSkillsConfig creates a new SkillsConfig with default values
func NewSkillsConfig() *SkillsConfig {
	return &SkillsConfig{}
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List skills in the graph",
	Long: `Skills lists every skill in the current snapshot, optionally narrowed to a
single workflow phase or a single tag. Combine --phase and --tag to require
both.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getSkillsConfigFromFlags(cmd)
		runSkillsCommand(ctx, config)
	},
}

func init() {
	skillsCmd.Flags().String("phase", "", "Only list skills in this phase (research, design, implement, review, operate)")
	skillsCmd.Flags().String("tag", "", "Only list skills carrying this tag")
	skillsCmd.Flags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(skillsCmd)
}

// getSkillsConfigFromFlags extracts skills configuration from command flags
func getSkillsConfigFromFlags(cmd *cobra.Command) *SkillsConfig {
	config := NewSkillsConfig()

	if phase, err := cmd.Flags().GetString("phase"); err == nil {
		config.Phase = phase
	}
	if tag, err := cmd.Flags().GetString("tag"); err == nil {
		config.Tag = tag
	}
	config.Format = outputFormatFromFlags(cmd)

	return config
}

func runSkillsCommand(ctx context.Context, config *SkillsConfig) {
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

	var nodes []*graphtypes.Node
	switch {
	case config.Phase != "":
		phase, err := graphtypes.ParsePhase(config.Phase)
		if err != nil {
			presenter.Error(err, "Invalid --phase value")
			os.Exit(1)
		}
		nodes = q.NodesByPhase(phase)
		if config.Tag != "" {
			filtered := nodes[:0:0]
			for _, node := range nodes {
				if node.HasTag(config.Tag) {
					filtered = append(filtered, node)
				}
			}
			nodes = filtered
		}
	case config.Tag != "":
		nodes = q.NodesByTag(config.Tag)
	default:
		nodes = q.Nodes()
	}

	output := &SkillsOutput{Skills: nodes, Format: config.Format}
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "Failed to render skill list")
		os.Exit(1)
	}
}

// SkillsOutput represents the skill list output
type SkillsOutput struct {
	Skills []*graphtypes.Node
	Format OutputFormat
}

// Render formats and renders the skill list to the specified writer
func (o *SkillsOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *SkillsOutput) renderJSON(w io.Writer) error {
	type jsonOutput struct {
		Skills []*graphtypes.Node `json:"skills"`
		Count  int                `json:"count"`
	}

	jsonData, err := json.MarshalIndent(jsonOutput{Skills: o.Skills, Count: len(o.Skills)}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

func (o *SkillsOutput) renderTable(w io.Writer) error {
	if len(o.Skills) == 0 {
		fmt.Fprintln(w, "No skills match.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHASE\tTAGS\tLEVERAGE\tRUNS")
	fmt.Fprintln(tw, "--\t----\t-----\t----\t--------\t----")
	for _, n := range o.Skills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%d\n",
			n.ID,
			n.Name,
			n.Phase,
			strings.Join(n.Tags, ","),
			n.Leverage,
			n.UsageCount,
		)
	}
	return tw.Flush()
}
