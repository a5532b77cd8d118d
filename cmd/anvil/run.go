package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"forgeline/anvil/pkg/cli"
	"forgeline/anvil/pkg/config"
	"forgeline/anvil/pkg/history"
	"forgeline/anvil/pkg/rules/actions"
	"forgeline/anvil/pkg/rules/engine"
	"forgeline/anvil/pkg/rules/source"
	"forgeline/anvil/pkg/server"
	"forgeline/anvil/pkg/telemetry/logging"
	"forgeline/anvil/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the anvil daemon",
	Long: `Start the anvil daemon with the specified configuration.

The daemon opens the rule store, loads built-in rules and watches the
file for changes, serves the apply API and Prometheus metrics, and
prunes the history store on the configured schedule.

Examples:
  # Start with default config
  anvil run

  # Start with custom config
  anvil run --config /etc/anvil/config.yaml

  # Validate config without starting
  anvil run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		AddSource:     cfg.Logging.AddSource,
		SensitiveKeys: cfg.Rules.SensitiveFields,
	})
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmdContext(cmd))
	defer stop()

	// Plugin registry shared by the store and the engine.
	reg := engine.NewDefaultRegistry(actions.Config{
		HTTPTimeout: cfg.APICall.Timeout,
		HTTPRetries: cfg.APICall.Retries,
	})

	logger.Info("opening rule store", "path", cfg.Rules.StorePath)
	store, err := source.NewSQLiteStore(cfg.Rules.StorePath, reg)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open rule store: %w", err))
	}
	defer store.Close()

	builtin := source.NewBuiltinLoader(cfg.Rules.BuiltinPath, reg, logger)
	if cfg.Rules.BuiltinPath != "" {
		// Surface broken built-in rules at startup rather than on the
		// first batch.
		if loaded, err := builtin.Load(ctx); err != nil {
			logger.Warn("built-in rules failed to load", "error", err)
		} else {
			logger.Info("built-in rules loaded", "count", len(loaded))
		}
	}

	if cfg.Rules.WatchBuiltin && cfg.Rules.BuiltinPath != "" {
		watcher, err := source.NewWatcher(builtin, source.WatcherConfig{
			DebounceInterval: cfg.Rules.WatchDebounce,
		}, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to create rules watcher: %w", err))
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("rules watcher stopped", "error", err)
			}
		}()
	}

	var recorder engine.Recorder
	if cfg.History.Enabled {
		storeCfg := history.DefaultStoreConfig()
		storeCfg.Path = cfg.History.Path
		historyStore, err := history.NewStore(storeCfg, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open history store: %w", err))
		}
		defer historyStore.Close()
		recorder = historyStore

		scheduler := history.NewScheduler(historyStore, history.RetentionConfig{
			Schedule: cfg.History.PruneSchedule,
			Window:   cfg.History.Retention,
		}, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
		}
	}

	engineMetrics := metrics.New(nil)
	eng, err := engine.New(store, builtin, reg, engine.Config{
		MaskPolicy:      engine.MaskPolicy(cfg.Rules.MaskSecrets),
		SensitiveFields: cfg.Rules.SensitiveFields,
		Metrics:         engineMetrics,
		Recorder:        recorder,
	}, logger)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to create engine: %w", err))
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = engineMetrics.Handler()
	}
	srv := server.New(&cfg.Server, eng, metricsHandler, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Rule store open at %s\n", cfg.Rules.StorePath)
	fmt.Fprintf(out, "✓ Apply endpoint: http://%s/v1/apply\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	return nil
}
