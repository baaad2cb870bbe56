package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autocodit-io/runner/internal/config"
	"github.com/autocodit-io/runner/internal/progress"
	"github.com/autocodit-io/runner/internal/runner"
	"github.com/autocodit-io/runner/internal/telemetry"
	"github.com/autocodit-io/runner/internal/toolrpc"
	"github.com/autocodit-io/runner/internal/toolserver"
	"github.com/autocodit-io/runner/internal/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the task described by the environment",
	Long: `Run reads the task from the environment (REPOSITORY_URL, ACTION_TYPE,
TASK_DESCRIPTION, ...), starts the tool servers, executes the plan, and
exits 0 only if every step completed.`,
	Args: cobra.NoArgs,
	RunE: runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Workspace.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare workspace: %w", err)
	}

	logger = logger.With("task_id", cfg.Task.TaskID, "session_id", cfg.Task.SessionID)
	logger.Info("runner starting",
		"action", cfg.Task.Action,
		"repository", cfg.Task.RepositoryURL,
		"workspace", cfg.Workspace.Root)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := progress.NewReporter(cfg.Task.APIEndpoint, cfg.Settings.ProgressQueueSize, logger)
	defer reporter.Close()

	// Repository tool server, in-process.
	_, repoSrv, err := toolserver.NewRepository(toolserver.RepositoryOptions{
		Task:           cfg.Task,
		Workspace:      cfg.Workspace,
		CommandTimeout: cfg.CommandTimeout(),
		Logger:         logger,
		OnModified: func(path string, added, removed []string) {
			reporter.Emit(progress.FileModified(cfg.Task, path, added, removed))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start repository server: %w", err)
	}

	var group errgroup.Group
	group.Go(repoSrv.Serve)
	defer func() {
		_ = repoSrv.Stop(context.Background())
		_ = group.Wait()
	}()

	clients := map[string]toolrpc.Client{
		"repository": toolrpc.NewLocalClient(repoSrv),
		"ai":         toolrpc.NewHTTPClient("ai", cfg.Task.APIEndpoint+"/api/v1/ai"),
		"security":   toolrpc.NewHTTPClient("security", cfg.Task.APIEndpoint+"/api/v1/security"),
	}

	// Browser sidecar is optional: without it browser steps fail as
	// tool-unavailable, nothing else changes.
	if cfg.PlaywrightURL != "" {
		_, browserSrv, err := toolserver.NewBrowser(ctx, cfg.PlaywrightURL, cfg.Settings.ToolReadyTimeout, logger)
		if err != nil {
			logger.Warn("browser sidecar unavailable, continuing without it", "error", err)
		} else {
			group.Go(browserSrv.Serve)
			defer func() { _ = browserSrv.Stop(context.Background()) }()
			clients["browser"] = toolrpc.NewLocalClient(browserSrv)
		}
	}

	// Watch the clone so changes made by executed commands surface as
	// file-modified events too.
	if w, err := watcher.New(cfg.Workspace.RepoDir(), logger); err != nil {
		logger.Warn("file watcher unavailable", "error", err)
	} else if err := w.Start(); err != nil {
		logger.Warn("file watcher failed to start", "error", err)
	} else {
		defer w.Stop()
		go func() {
			for event := range w.Events() {
				reporter.Emit(progress.FileModified(cfg.Task, event.Path, nil, nil))
			}
		}()
	}

	metrics := telemetry.New(cfg.PosthogAPIKey, logger)
	defer metrics.Close()

	executor := runner.NewExecutor(cfg.Task, clients, reporter, logger)
	r := runner.New(runner.Options{
		Task:      cfg.Task,
		Executor:  executor,
		Sink:      reporter,
		Telemetry: metrics,
		Logger:    logger,
	})

	summary := r.Run(ctx)

	summaryPath := filepath.Join(cfg.Workspace.ArtifactsDir(), "summary.yaml")
	if err := config.SaveYAML(summaryPath, &summary); err != nil {
		logger.Warn("failed to write summary", "error", err)
	}
	if artifacts := r.Artifacts(); len(artifacts) > 0 {
		artifactsPath := filepath.Join(cfg.Workspace.ArtifactsDir(), "artifacts.yaml")
		if err := config.SaveYAML(artifactsPath, artifacts); err != nil {
			logger.Warn("failed to write artifacts", "error", err)
		}
	}

	if !summary.Success {
		return fmt.Errorf("task failed at step %q: %s", summary.FailedStep, summary.Error)
	}

	logger.Info("runner finished",
		"steps", fmt.Sprintf("%d/%d", summary.StepsCompleted, summary.StepsTotal),
		"artifacts", summary.ArtifactCount,
		"elapsed", summary.Elapsed)
	return nil
}
