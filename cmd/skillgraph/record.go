package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// RecordRunConfig holds configuration for the record run command
type RecordRunConfig struct {
	ID     string
	Skills []string
}

// NewRecordRunConfig returns a RecordRunConfig with default values
func NewRecordRunConfig() *RecordRunConfig {
	return &RecordRunConfig{}
}

// getRecordRunConfigFromFlags extracts run configuration from command flags
func getRecordRunConfigFromFlags(cmd *cobra.Command) *RecordRunConfig {
	config := NewRecordRunConfig()
	if id, err := cmd.Flags().GetString("id"); err == nil {
		config.ID = id
	}
	if skills, err := cmd.Flags().GetStringSlice("skills"); err == nil {
		config.Skills = skills
	}
	return config
}

// RecordImprovementConfig holds configuration for the record improvement command
type RecordImprovementConfig struct {
	Improved string
	Trigger  string
	Note     string
}

// NewRecordImprovementConfig returns a RecordImprovementConfig with default values
func NewRecordImprovementConfig() *RecordImprovementConfig {
	return &RecordImprovementConfig{}
}

// getRecordImprovementConfigFromFlags extracts improvement configuration from command flags
func getRecordImprovementConfigFromFlags(cmd *cobra.Command) *RecordImprovementConfig {
	config := NewRecordImprovementConfig()
	if improved, err := cmd.Flags().GetString("improved"); err == nil {
		config.Improved = improved
	}
	if trigger, err := cmd.Flags().GetString("trigger"); err == nil {
		config.Trigger = trigger
	}
	if note, err := cmd.Flags().GetString("note"); err == nil {
		config.Note = note
	}
	return config
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record execution runs and improvement events",
	Long: `Record appends evidence to the graph's sources. Recorded runs feed
sequence and co-execution edges; improvement events feed improved_by
edges. Appends are durable immediately but only visible in the graph
after the next build.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var recordRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Record one execution run as an ordered list of skill ids",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getRecordRunConfigFromFlags(cmd)
		runRecordRunCommand(ctx, config)
	},
}

var recordImprovementCmd = &cobra.Command{
	Use:   "improvement",
	Short: "Record that one skill was improved after observing another",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getRecordImprovementConfigFromFlags(cmd)
		runRecordImprovementCommand(ctx, config)
	},
}

func init() {
	recordRunCmd.Flags().String("id", "", "Run id (generated when empty)")
	recordRunCmd.Flags().StringSlice("skills", nil, "Skill ids in execution order (comma-separated or repeated)")

	recordImprovementCmd.Flags().String("improved", "", "Id of the skill that was improved")
	recordImprovementCmd.Flags().String("trigger", "", "Id of the skill whose execution triggered the improvement")
	recordImprovementCmd.Flags().String("note", "", "Free-form note on what changed")

	recordCmd.AddCommand(withTracing(recordRunCmd))
	recordCmd.AddCommand(withTracing(recordImprovementCmd))
	rootCmd.AddCommand(recordCmd)
}

func runRecordRunCommand(ctx context.Context, config *RecordRunConfig) {
	if len(config.Skills) == 0 {
		presenter.Error(fmt.Errorf("no skills provided"), "A run needs at least one skill, e.g. --skills extract,transform")
		os.Exit(1)
	}
	for _, id := range config.Skills {
		if strings.TrimSpace(id) == "" {
			presenter.Error(fmt.Errorf("empty skill id"), "Every entry in --skills must be a non-empty skill id")
			os.Exit(1)
		}
	}

	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer svc.Close()

	rec := sources.NewRunRecord(config.ID, config.Skills, time.Time{})
	if err := svc.RecordRun(ctx, rec); err != nil {
		presenter.Error(err, "Failed to record the run")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Recorded run %s with %d skill(s)", rec.ID, len(rec.SkillIDs)))
	presenter.Info("Run 'skillgraph build' to fold it into the graph")
}

func runRecordImprovementCommand(ctx context.Context, config *RecordImprovementConfig) {
	if config.Improved == "" || config.Trigger == "" {
		presenter.Error(fmt.Errorf("missing skill ids"), "Both --improved and --trigger are required")
		os.Exit(1)
	}
	if config.Improved == config.Trigger {
		presenter.Error(fmt.Errorf("self-improvement event"), "--improved and --trigger must name different skills")
		os.Exit(1)
	}

	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer svc.Close()

	event := sources.NewImprovementEvent(config.Improved, config.Trigger, config.Note)
	if err := svc.RecordImprovement(ctx, event); err != nil {
		presenter.Error(err, "Failed to record the improvement")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Recorded improvement of %s triggered by %s", event.ImprovedID, event.TriggerID))
	presenter.Info("Run 'skillgraph build' to fold it into the graph")
}
