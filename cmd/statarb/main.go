package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/statarb/config"
	"github.com/alejandrodnm/statarb/internal/adapters/export"
	"github.com/alejandrodnm/statarb/internal/adapters/httpapi"
	"github.com/alejandrodnm/statarb/internal/adapters/notify"
	"github.com/alejandrodnm/statarb/internal/adapters/storage"
	"github.com/alejandrodnm/statarb/internal/application/backtest"
	"github.com/alejandrodnm/statarb/internal/domain"
	"github.com/alejandrodnm/statarb/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	dryRun := flag.Bool("dry-run", false, "run without opening the run database")
	trades := flag.Bool("trades", false, "print the trade log of the best window")
	exportDir := flag.String("export", "", "write per-window CSV ledgers and SVG charts to this directory")
	history := flag.Int("history", 0, "list the last N stored runs and exit")
	show := flag.String("show", "", "print a stored run by ID and exit")
	serve := flag.Bool("serve", false, "start the HTTP API instead of running the configured pair")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN, cfg.Retention())
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	notifier := notify.NewConsole(*trades)

	switch {
	case *history > 0:
		requireStore(store, "-history")
		runHistory(ctx, store, notifier, *history)
		return
	case *show != "":
		requireStore(store, "-show")
		runShow(ctx, store, notifier, *show, *exportDir)
		return
	case *serve:
		runServer(ctx, cfg, store)
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	slog.Info("statarb starting",
		"config", *configPath,
		"leg_a", cfg.Pair.LegA.Ticker,
		"leg_b", cfg.Pair.LegB.Ticker,
		"provider", cfg.Data.Provider,
		"windows", cfg.Backtest.Windows,
		"num_std", cfg.Backtest.NumStd,
		"fee", cfg.Fee(),
		"dry_run", *dryRun,
	)

	provider, err := buildProvider(cfg)
	if err != nil {
		slog.Error("failed to build price provider", "err", err)
		os.Exit(1)
	}

	pipeCfg, err := pipelineConfig(cfg)
	if err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	var runStore ports.Storage
	if store != nil {
		runStore = store
	}
	pipeline := backtest.NewPipeline(provider, runStore, notifier, pipeCfg)

	run, err := pipeline.Run(ctx)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	if *exportDir != "" {
		writeExport(*exportDir, run)
	}
	slog.Info("statarb finished", "run_id", run.ID, "windows", len(run.Results))
}

func pipelineConfig(cfg *config.Config) (backtest.PipelineConfig, error) {
	start, end, err := cfg.Range(time.Now())
	if err != nil {
		return backtest.PipelineConfig{}, err
	}
	return backtest.PipelineConfig{
		Pair: backtest.PairSpec{
			LegA:         cfg.Pair.LegA.Ticker,
			LegB:         cfg.Pair.LegB.Ticker,
			FX:           cfg.Pair.FX,
			BaseCurrency: cfg.Pair.BaseCurrency,
			Interval:     cfg.Pair.Interval,
			Start:        start,
			End:          end,
		},
		Intercept:           cfg.Intercept(),
		MaxPValue:           cfg.Stationarity.MaxPValue,
		EnforceStationarity: cfg.Stationarity.Enforce,
		Specs:               backtest.SpecsFor(cfg.Backtest.Windows, cfg.Backtest.NumStd, cfg.Backtest.PerWindowNumStd),
		Fee:                 cfg.Fee(),
		Runner:              runnerConfig(cfg),
	}, nil
}

func runnerConfig(cfg *config.Config) backtest.RunnerConfig {
	return backtest.RunnerConfig{Workers: cfg.Backtest.Workers, SkipReentry: cfg.Backtest.SkipReentry}
}

func runServer(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) {
	var runStore ports.Storage
	if store != nil {
		runStore = store
	}
	srv := httpapi.NewServer(runStore, httpapi.Config{
		Port:        cfg.API.Port,
		ReleaseMode: cfg.API.ReleaseMode,
		Defaults: httpapi.Defaults{
			Windows:   cfg.Backtest.Windows,
			NumStd:    cfg.Backtest.NumStd,
			Fee:       cfg.Fee(),
			Intercept: cfg.Intercept(),
			MaxPValue: cfg.Stationarity.MaxPValue,
			Runner:    runnerConfig(cfg),
		},
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("api exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("api stopped cleanly")
}

func writeExport(dir string, run domain.Run) {
	paths, err := export.WriteRun(dir, run)
	if err != nil {
		slog.Error("export failed", "err", err, "dir", dir)
		os.Exit(1)
	}
	slog.Info("run exported", "dir", dir, "files", len(paths))
}

func requireStore(store *storage.SQLiteStorage, flagName string) {
	if store == nil {
		slog.Error(flagName + " needs the run database, drop -dry-run")
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
