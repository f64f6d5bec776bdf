package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/alejandrodnm/statarb/internal/adapters/notify"
	"github.com/alejandrodnm/statarb/internal/domain"
	"github.com/alejandrodnm/statarb/internal/ports"
)

func runHistory(ctx context.Context, store ports.Storage, notifier *notify.Console, limit int) {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		slog.Error("failed to list runs", "err", err)
		os.Exit(1)
	}
	notifier.PrintHistory(runs)
}

func runShow(ctx context.Context, store ports.Storage, notifier *notify.Console, id, exportDir string) {
	run, err := store.GetRun(ctx, id)
	if errors.Is(err, domain.ErrRunNotFound) {
		slog.Error("run not found", "id", id)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("failed to load run", "id", id, "err", err)
		os.Exit(1)
	}
	if err := notifier.Report(ctx, run); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	if exportDir != "" {
		writeExport(exportDir, run)
	}
}
