package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/nercompare/internal/api"
	"github.com/timmy/nercompare/internal/api/handler"
	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/events"
	"github.com/timmy/nercompare/internal/jobs"
	"github.com/timmy/nercompare/internal/llm"
	"github.com/timmy/nercompare/internal/logger"
	"github.com/timmy/nercompare/internal/repository"
	"github.com/timmy/nercompare/internal/storage"
	"github.com/timmy/nercompare/internal/workflow"
)

func main() {
	// CONFIG_PATH overrides the default config lookup
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "nercompare-api",
		File:        cfg.Log.File,
		FileOnly:    cfg.Log.FileOnly,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx := context.Background()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	gateway := repository.NewGateway(db)

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		appLogger.WithError(err).Fatal("Failed to create upload directory")
	}

	var archive *storage.Archive
	if cfg.Storage.Enabled {
		store, err := storage.New(cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		archive = storage.NewArchive(store, cfg.Storage.Prefix)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		appLogger.WithFields(logger.Fields{
			"brokers": cfg.Events.Brokers,
			"topic":   cfg.Events.Topic,
		}).Info("Publishing job events")
	}
	defer publisher.Close()

	client := llm.NewClient(llm.Options{Timeout: cfg.LLM.Timeout, ChatPath: cfg.LLM.ChatPath})
	runner := workflow.NewRunner(client, gateway, workflow.Options{
		WorkflowName:  cfg.Workflow.Name,
		TempDir:       cfg.Workflow.TempDir,
		KeepArtifacts: cfg.Workflow.KeepArtifacts,
		Events:        publisher,
	})
	manager := jobs.NewManager(runner, cfg.Workflow.MaxConcurrentJobs)

	steps := cfg.Workflow.StepPaths()
	if missing := steps.Missing(); len(missing) > 0 {
		appLogger.WithField("missing", missing).Warn("Step configuration files not found; uploads will be rejected")
	}

	router := api.SetupRouter(cfg.Server, api.Handlers{
		Health: handler.NewHealthHandler(manager),
		Jobs: handler.NewJobHandler(gateway, runner, manager, handler.JobHandlerConfig{
			Steps:       steps,
			UploadDir:   cfg.Server.UploadDir,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			Archive:     archive,
		}),
		Tasks:  handler.NewTaskHandler(gateway),
		Upload: handler.NewUploadHandler(cfg.Server.UploadDir, archive),
		GUI:    handler.NewGUIHandler(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Workflow.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	// Running jobs get whatever is left of the shutdown window.
	if err := manager.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Jobs still running at exit")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	appLogger.Info("Server exited")
}
