package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillgraph/pkg/api"
	"github.com/jingkaihe/skillgraph/pkg/logger"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/registry"
	"github.com/jingkaihe/skillgraph/pkg/snapshot"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host: "localhost",
		Port: 8080,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server over the skill graph",
	Long: `Start a local server exposing the graph over a JSON API: skills, edges,
neighbors, paths, leverage rankings, clusters, gap findings and builds.

The server loads the persisted snapshot at startup when one exists.
Until a snapshot is published, query endpoints answer 409 and a build
can be triggered with POST /api/build.

The server will be available at http://localhost:8080 by default.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)
		runServeCommand(ctx, config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the API server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the API server to")
	serveCmd.Flags().Bool("watch", false, "Rebuild the graph when skill files change on disk")

	rootCmd.AddCommand(withTracing(serveCmd))
}

// getServeConfigFromFlags extracts serve configuration from command flags
func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()

	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}

	return config
}

// validateServeConfig validates the serve configuration
func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	// Check if host is a valid hostname or IP address
	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			// Not an IP, check if it's a valid hostname
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return fmt.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	// Check for privileged ports
	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

// watchDirs resolves the directories watch mode observes: the manifest's
// directory when a manifest is configured, the discovery roots otherwise.
func watchDirs() []string {
	if manifest := viper.GetString("registry.manifest"); manifest != "" {
		return []string{filepath.Dir(manifest)}
	}
	reg, err := newRegistry()
	if err != nil {
		return nil
	}
	if disc, ok := reg.(*registry.Discovery); ok {
		return disc.Dirs()
	}
	return nil
}

// runServeCommand starts the API server
func runServeCommand(ctx context.Context, config *ServeConfig) {
	if err := validateServeConfig(config); err != nil {
		presenter.Error(err, "invalid server configuration")
		os.Exit(1)
	}

	svc, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open graph sources")
		os.Exit(1)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			logger.G(ctx).WithError(closeErr).Error("failed to close graph service")
		}
	}()

	// Serve whatever snapshot exists. Without one, query endpoints
	// answer 409 until a build publishes a graph.
	if snapshot.Exists(svc.SnapshotPath()) {
		if _, err := svc.Load(ctx); err != nil {
			presenter.Warning(fmt.Sprintf("Failed to load snapshot: %v", err))
			presenter.Info("Queries return 409 until a build succeeds")
		}
	} else {
		presenter.Info("No snapshot yet; run 'skillgraph build' or POST /api/build to create one")
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"host": config.Host,
		"port": config.Port,
	}).Info("Starting API server")

	serverConfig := &api.ServerConfig{
		Host: config.Host,
		Port: config.Port,
	}

	server, err := api.NewServer(serverConfig, svc)
	if err != nil {
		presenter.Error(err, "failed to create API server")
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.Watch {
		dirs := watchDirs()
		if len(dirs) == 0 {
			presenter.Warning("No skill directories to watch; continuing without watch mode")
		} else {
			watcher := registry.NewWatcher(dirs, registry.DefaultDebounce, func(ctx context.Context) {
				if _, err := svc.Build(ctx); err != nil {
					logger.G(ctx).WithError(err).Error("rebuild after skill change failed")
					return
				}
				logger.G(ctx).Info("Graph rebuilt after skill change")
			})
			go func() {
				if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.G(ctx).WithError(err).Error("skill watcher stopped")
				}
			}()
			presenter.Info(fmt.Sprintf("Watching for skill changes under: %s", strings.Join(dirs, ", ")))
		}
	}

	// Start the server
	presenter.Success(fmt.Sprintf("API server starting on http://%s:%d", config.Host, config.Port))
	presenter.Info("Press Ctrl+C to stop the server")

	// Start server and wait for shutdown
	if err := server.Start(ctx); err != nil {
		logger.G(ctx).WithError(err).Error("API server error")
		presenter.Error(err, "API server failed")
		os.Exit(1)
	}

	presenter.Info("API server stopped")
}
