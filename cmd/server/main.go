package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/internal/logging"
	"github.com/me/dicomfn/internal/orchestration"
	"github.com/me/dicomfn/internal/scheduler"
	"github.com/me/dicomfn/internal/server"
	"github.com/me/dicomfn/internal/store"
	"github.com/me/dicomfn/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (default ./dicomfn.yaml or ~/.config/dicomfn/dicomfn.yaml)")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	loader := config.NewLoader()
	if *configFile != "" {
		loader = loader.WithConfigFile(*configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = *logLevel
	}
	if *debug {
		cfg.Server.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Server.LogLevel), cfg.Server.LogFormat)
	if f := loader.ConfigFile(); f != "" {
		logger.Info("config loaded", "file", f)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.Init("dicomfn", server.Version, cfg.Tracing.Output); err != nil {
			fmt.Fprintf(os.Stderr, "init tracing: %v\n", err)
			os.Exit(1)
		}
		logger.Info("tracing enabled", "output", cfg.Tracing.Output)
	}

	st, err := store.Open(context.Background(), cfg.Store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	reg := orchestration.NewRegistry(logger)
	orchestration.RegisterWorkloads(reg, cfg.Workloads, orchestration.PausePoint{
		PauseEvent:  cfg.Preemption.PauseEventName,
		ResumeEvent: cfg.Preemption.ResumeEventName,
		Timeout:     cfg.Preemption.PauseCheckTimeout,
	})
	rt := orchestration.NewRuntime(reg, logger)

	sched := scheduler.NewLoop(rt, rt, st, scheduler.ConfigFrom(cfg), logger)
	srv := server.New(cfg.Server, rt, st, logger, server.WithScheduler(sched))

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler in background.
	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr,
			"high_priority", cfg.Preemption.HighPriority, "low_priority", cfg.Preemption.LowPriority)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop scheduler before HTTP server.
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if err := rt.Shutdown(shutdownCtx); err != nil {
		logger.Error("runtime shutdown error", "error", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
