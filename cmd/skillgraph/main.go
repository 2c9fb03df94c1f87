package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillgraph/pkg/gaps"
	"github.com/jingkaihe/skillgraph/pkg/improvements"
	"github.com/jingkaihe/skillgraph/pkg/leverage"
	"github.com/jingkaihe/skillgraph/pkg/logger"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/registry"
	"github.com/jingkaihe/skillgraph/pkg/runarchive"
	"github.com/jingkaihe/skillgraph/pkg/service"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLGRAPH")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillgraph")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	setDefaults()
}

// setDefaults registers every configuration default in one place so the
// config file, environment and flags all override the same baseline.
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.base_path", "")

	viper.SetDefault("registry.manifest", "")
	viper.SetDefault("registry.dirs", []string{})
	viper.SetDefault("registry.ignore", []string{})

	viper.SetDefault("snapshot.path", "")

	viper.SetDefault("scoring.damping", leverage.DefaultDamping)
	viper.SetDefault("scoring.max_iterations", leverage.DefaultMaxIterations)
	viper.SetDefault("scoring.tolerance", leverage.DefaultTolerance)

	viper.SetDefault("gaps.unused_after_days", gaps.DefaultUnusedAfterDays)
	viper.SetDefault("gaps.min_phase_skills", gaps.DefaultMinPhaseSkills)
}

var rootCmd = &cobra.Command{
	Use:   "skillgraph",
	Short: "Build and query a knowledge graph over your agent skills",
	Long: `Skillgraph turns a skill catalog, its execution history and its improvement
events into a typed knowledge graph. It infers dependency, sequence,
co-execution, tag and improvement edges, scores every skill's structural
leverage, derives tag clusters and surfaces gaps such as missing
dependencies, isolated skills and underpopulated workflow phases.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		level := viper.GetString("log_level")
		if err := logger.SetLogLevel(level); err != nil {
			presenter.Warning(fmt.Sprintf("Invalid log level %q, using the default", level))
		}
		logger.SetLogFormat(viper.GetString("log_format"))

		shutdown, err := initTracing(ctx)
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
			return
		}
		tracingShutdown = shutdown
	},
	// Show help if no subcommand is provided
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

// newRegistry builds the configured skill registry: a manifest file when
// one is set, directory discovery otherwise.
func newRegistry() (registry.Registry, error) {
	if manifest := viper.GetString("registry.manifest"); manifest != "" {
		return registry.NewManifest(manifest), nil
	}

	var opts []registry.Option
	if dirs := viper.GetStringSlice("registry.dirs"); len(dirs) > 0 {
		opts = append(opts, registry.WithSkillDirs(dirs...))
	} else {
		opts = append(opts, registry.WithDefaultDirs())
	}
	if patterns := viper.GetStringSlice("registry.ignore"); len(patterns) > 0 {
		opts = append(opts, registry.WithIgnorePatterns(patterns...))
	}
	return registry.NewDiscovery(opts...)
}

// openService wires the registry, run archive and improvement log behind a
// graph service using the resolved configuration. The caller owns Close.
func openService(ctx context.Context) (*service.Service, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure skill registry")
	}

	storeConfig, err := runarchive.DefaultConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve storage defaults")
	}
	if storeType := viper.GetString("storage.type"); storeType != "" {
		storeConfig.StoreType = storeType
	}
	if basePath := viper.GetString("storage.base_path"); basePath != "" {
		storeConfig.BasePath = basePath
	}

	runs, err := runarchive.NewStore(ctx, storeConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open run archive")
	}

	events, err := improvements.NewLog(storeConfig.BasePath)
	if err != nil {
		runs.Close()
		return nil, errors.Wrap(err, "failed to open improvement log")
	}

	opts := []service.Option{
		service.WithScoringOptions(leverage.Options{
			Damping:       viper.GetFloat64("scoring.damping"),
			MaxIterations: viper.GetInt("scoring.max_iterations"),
			Tolerance:     viper.GetFloat64("scoring.tolerance"),
		}),
		service.WithGapOptions(gaps.Options{
			UnusedAfterDays: viper.GetInt("gaps.unused_after_days"),
			MinPhaseSkills:  viper.GetInt("gaps.min_phase_skills"),
		}),
	}
	if path := viper.GetString("snapshot.path"); path != "" {
		opts = append(opts, service.WithSnapshotPath(path))
	}

	svc, err := service.New(reg, runs, events, opts...)
	if err != nil {
		runs.Close()
		events.Close()
		return nil, errors.Wrap(err, "failed to create graph service")
	}
	return svc, nil
}

// loadSnapshot publishes the persisted snapshot so query and mutation
// commands have a graph to work against.
func loadSnapshot(ctx context.Context, svc *service.Service) {
	if _, err := svc.Load(ctx); err != nil {
		presenter.Error(err, "Failed to load the graph snapshot")
		presenter.Info("Run 'skillgraph build' to build the graph from your skills and run history")
		os.Exit(1)
	}
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Execute
	err := rootCmd.Execute()
	shutdownTracing()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
