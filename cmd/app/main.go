package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stock_go/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Realtime quote feed (optional, degrades to REST polling)
	if err := bootstrap.Realtime.Start(ctx); err != nil {
		slog.Warn("Realtime quote feed unavailable, falling back to REST", slog.Any("error", err))
	}
	defer bootstrap.Realtime.Stop()

	// 5. FX rate poller
	if err := bootstrap.FX.Start(ctx); err != nil {
		slog.Warn("FX rate poller failed to start", slog.Any("error", err))
	}
	defer bootstrap.FX.Stop()

	// 6. Reservation scheduler
	bootstrap.Reservations.Start(ctx)
	defer bootstrap.Reservations.Stop()
	slog.InfoContext(ctx, "✅ Reservation scheduler started",
		slog.Int("interval_sec", bootstrap.Config.Scheduler.PollIntervalSec))

	// 7. HTTP API
	go func() {
		addr := bootstrap.Config.Server.Addr
		slog.Info("✅ API server listening", slog.String("addr", addr))
		if err := bootstrap.Server.Listen(addr); err != nil {
			slog.Error("API server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Stock Go fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	if err := bootstrap.Server.Shutdown(); err != nil {
		slog.Error("API shutdown failed", slog.Any("error", err))
	}
}
