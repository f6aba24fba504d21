package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/gateway"
	"server/internal/storage"
)

type projectWorker struct {
	ctx          context.Context
	projects     domain.ProjectRepository
	items        domain.WorkItemRepository
	coordinator  *pipeline.Coordinator
	logger       infra.Logger
	pollInterval time.Duration
}

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	gatewayClient := gateway.NewClient(gateway.Options{
		BaseURL:     cfg.GatewayBaseURL,
		APIKey:      cfg.GatewayAPIKey,
		RenderModel: cfg.RenderModel,
		OCRModel:    cfg.OCRModel,
		ParserModel: cfg.ParserModel,
		Timeout:     cfg.GatewayTimeout,
	})
	if !gatewayClient.Configured() {
		logger.Warn().Msg("worker: ai gateway api key missing, projects will be failed on pickup")
	}

	items := repo.NewWorkItemRepository(pool)
	projects := repo.NewProjectRepository(pool)
	orchestrator := pipeline.NewOrchestrator(items, gatewayClient, gatewayClient, fileStore, logger)
	coordinator := pipeline.NewCoordinator(items, projects, orchestrator, gatewayClient, cfg.BatchSize, logger)

	worker := &projectWorker{
		ctx:          ctx,
		projects:     projects,
		items:        items,
		coordinator:  coordinator,
		logger:       logger,
		pollInterval: time.Duration(cfg.WorkerPollSeconds) * time.Second,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *projectWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		projectID, err := w.projects.NextPending(w.ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				w.sleep()
				continue
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim project")
			w.sleep()
			continue
		}

		w.handleProject(projectID)
	}
}

func (w *projectWorker) handleProject(projectID string) {
	w.logger.Info().Str("project_id", projectID).Msg("worker: picked project")

	// Items stuck in processing from a crashed run go back to the queue
	// before the batch loop claims them.
	if recovered, err := w.items.RequeueStale(w.ctx, projectID); err != nil {
		w.logger.Error().Err(err).Str("project_id", projectID).Msg("worker: requeue stale items")
	} else if recovered > 0 {
		w.logger.Info().Int64("recovered", recovered).Str("project_id", projectID).Msg("worker: requeued stale items")
	}

	if err := w.coordinator.ProcessProject(w.ctx, projectID); err != nil {
		w.logger.Error().Err(err).Str("project_id", projectID).Msg("worker: project failed")
	}
}

func (w *projectWorker) sleep() {
	select {
	case <-w.ctx.Done():
	case <-time.After(w.pollInterval):
	}
}
