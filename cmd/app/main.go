package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tokendesk/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping (config, journal, genesis/replay)
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Journal.Close()

	cfg := bootstrap.Config

	// 4. Start Sequencer in its own goroutine (The Hotpath Loop)
	go bootstrap.Sequencer.Run(ctx)
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	// 5. Metrics exporter
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = bootstrap.Metrics.Serve(cfg.Metrics.Addr)
		slog.InfoContext(ctx, "✅ Metrics exporter started", slog.String("addr", cfg.Metrics.Addr))
	}

	// 6. Feed server: live event stream plus the read-model endpoints
	var feedSrv *http.Server
	if cfg.Feed.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/feed", bootstrap.Hub)
		mux.HandleFunc("/status", bootstrap.Service.StatusHandler())
		mux.HandleFunc("/trades", bootstrap.Service.TradesHandler())

		feedSrv = &http.Server{Addr: cfg.Feed.Addr, Handler: mux}
		go func() {
			slog.Info("✅ Feed server started", slog.String("addr", cfg.Feed.Addr))
			if err := feedSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Feed server failed", slog.Any("error", err))
			}
		}()
	}

	// 7. Sim traders (optional background load)
	if bootstrap.Driver != nil {
		go bootstrap.Driver.Run(ctx)
		slog.InfoContext(ctx, "✅ Sim traders started", slog.Int("traders", cfg.Sim.Traders))
	}

	slog.InfoContext(ctx, "✨ Token Desk fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if feedSrv != nil {
		_ = feedSrv.Shutdown(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	bootstrap.Hub.CloseAll()
}
