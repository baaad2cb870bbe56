// Package main runs the repository tool server standalone, for setups
// where tool backends live in their own containers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autocodit-io/runner/internal/config"
	"github.com/autocodit-io/runner/internal/toolserver"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (0 for dynamic allocation)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Workspace.Ensure(); err != nil {
		logger.Error("failed to prepare workspace", "error", err)
		os.Exit(1)
	}

	_, srv, err := toolserver.NewRepositoryOnPort(toolserver.RepositoryOptions{
		Task:           cfg.Task,
		Workspace:      cfg.Workspace,
		CommandTimeout: cfg.CommandTimeout(),
		Logger:         logger,
	}, *port)
	if err != nil {
		logger.Error("failed to create tool server", "error", err)
		os.Exit(1)
	}

	logger.Info("tool server started", "port", srv.Port(), "pid", os.Getpid())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("failed to stop cleanly", "error", err)
		os.Exit(1)
	}
}
