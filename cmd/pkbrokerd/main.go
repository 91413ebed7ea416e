package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saxa/pkbrokerd/internal/config"
	"github.com/saxa/pkbrokerd/internal/engine"
	"github.com/saxa/pkbrokerd/internal/ipc"
	applog "github.com/saxa/pkbrokerd/internal/log"
	"github.com/saxa/pkbrokerd/internal/metrics"
	"github.com/saxa/pkbrokerd/internal/txlist"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pkbrokerd",
	Short: "pkbrokerd - privileged package-management broker daemon",
	Long: `pkbrokerd serializes package-management jobs submitted by
unprivileged clients through a single queue, running at most one job at a
time and handing each off to a named plugin backend.`,
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pkbrokerd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML configuration file")
	rootCmd.Flags().String("metrics-addr", "", "Prometheus scrape listen address, e.g. :9090 (disabled if empty)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	applog.Init(applog.Config{
		Level:      applog.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.LogLevel, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-json") {
		cfg.LogJSON, _ = rootCmd.PersistentFlags().GetBool("log-json")
	}
	applog.Init(applog.Config{Level: applog.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := applog.WithComponent("pkbrokerd")

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	registry := engine.NewRegistry()
	registerBuiltinPlugins(registry)

	frontend := ipc.NewFrontend(applog.WithComponent("ipc"))
	list := txlist.New(ctx, registry, applog.WithComponent("engine"), cfg.GracePeriod, frontend)

	changed := list.Subscribe()
	go func() {
		for range changed {
			metrics.RecordQueueDepth(list.GetSize())
		}
	}()

	logger.Info().Str("lib_dir", cfg.LibDir).Str("data_dir", cfg.DataDir).Msg("pkbrokerd ready")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	list.Unsubscribe(changed)
	return nil
}
