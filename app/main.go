package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/api"
	"github.com/lysyi3m/lemmy-mirror/app/backup"
	"github.com/lysyi3m/lemmy-mirror/app/cfg"
	"github.com/lysyi3m/lemmy-mirror/app/database"
	"github.com/lysyi3m/lemmy-mirror/app/jobs"
	"github.com/lysyi3m/lemmy-mirror/app/lemmy"
	"github.com/lysyi3m/lemmy-mirror/app/mirror"
	"github.com/lysyi3m/lemmy-mirror/app/reddit"
	"github.com/lysyi3m/lemmy-mirror/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		// Help was shown
		return nil
	}

	logger := setupLogger(appCfg)
	slog.SetDefault(logger)

	slog.Info("Starting Lemmy Mirror", "version", appCfg.Version, "source", appCfg.RedditSource, "ledger", appCfg.LedgerDriver)

	ctx := context.Background()

	backupManager, err := newBackupManager(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	if backupManager != nil {
		if _, err := backupManager.Restore(ctx, appCfg.DBPath); err != nil {
			return err
		}
	}

	repo, db, closeRepo, err := openRepository(ctx, appCfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	slog.Info("Loading job configurations", "path", appCfg.JobsDir)
	configCache := jobs.NewConfigCache(appCfg.JobsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load job configurations: %w", err)
	}
	slog.Info("Job configurations loaded", "count", configCache.GetConfigCount(), "enabled", len(configCache.GetEnabledConfigs()))

	destination := lemmy.NewClient(appCfg.LemmyInstance, appCfg.LemmyUsername, appCfg.LemmyPassword, appCfg.UserAgent, logger)
	if err := destination.Login(ctx); err != nil {
		return err
	}

	deps := tasks.MirrorDeps{
		Source:      newSource(appCfg, logger),
		Destination: destination,
		Prober:      mirror.NewHTTPImageProber(nil, appCfg.UserAgent, appCfg.ProbeTimeout, logger),
		Repo:        repo,
		Waiter:      mirror.SleepWaiter{},
		Logger:      logger,
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(configCache, deps, tasks.SchedulerConfig{
		Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
		WorkerCount: appCfg.WorkerCount,
	})
	if backupManager != nil && db != nil {
		scheduler.SetBackup(backupManager, db, appCfg.BackupInterval)
	}
	scheduler.Start()

	handler := api.NewHandler(configCache, repo, scheduler)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey, appCfg.Version),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Background scheduler stopped")

	if backupManager != nil && db != nil {
		if err := backupManager.Backup(shutdownCtx, db); err != nil {
			slog.Error("Final backup failed", "error", err)
		}
	}

	slog.Info("Shutdown complete")
	return runErr
}

func setupLogger(appCfg *cfg.Cfg) *slog.Logger {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if appCfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openRepository returns the ledger store, the sqlite handle when one backs it
// and a close func.
func openRepository(ctx context.Context, appCfg *cfg.Cfg) (database.MirrorRepository, *database.DB, func(), error) {
	switch appCfg.LedgerDriver {
	case cfg.LedgerRedis:
		repo, err := database.NewRedisMirrorRepository(ctx, appCfg.RedisAddr, appCfg.RedisPassword)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("Connected to redis ledger", "addr", appCfg.RedisAddr)
		return repo, nil, func() { repo.Close() }, nil

	case cfg.LedgerMemory:
		slog.Warn("Using in-memory ledger, mirrored items are forgotten on restart")
		return database.NewMemoryMirrorRepository(), nil, func() {}, nil

	default:
		db, err := database.Open(appCfg.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		slog.Info("Opened sqlite ledger", "path", db.Path())
		return database.NewSQLiteMirrorRepository(db), db, func() { db.Close() }, nil
	}
}

func newSource(appCfg *cfg.Cfg, logger *slog.Logger) mirror.Source {
	if appCfg.RedditSource == cfg.SourceAtom {
		return reddit.NewAtomClient("", appCfg.UserAgent, 0, logger)
	}

	return reddit.NewClient(reddit.Config{
		ClientID:     appCfg.RedditClientID,
		ClientSecret: appCfg.RedditClientSecret,
		Username:     appCfg.RedditUsername,
		Password:     appCfg.RedditPassword,
		UserAgent:    appCfg.UserAgent,
	}, logger)
}

func newBackupManager(ctx context.Context, appCfg *cfg.Cfg, logger *slog.Logger) (*backup.Manager, error) {
	var backend backup.Backend

	switch appCfg.BackupDriver {
	case cfg.BackupLocal:
		backend = backup.NewLocalBackend(appCfg.BackupDir)
	case cfg.BackupGCS:
		client, err := backup.NewGCSClient(ctx, appCfg.GCSCredentialsFile)
		if err != nil {
			return nil, err
		}
		backend = backup.NewGCSBackend(client, appCfg.BackupBucket, logger)
	case cfg.BackupS3:
		s3Backend, err := backup.NewS3Backend(appCfg.AWSRegion, appCfg.BackupBucket)
		if err != nil {
			return nil, err
		}
		backend = s3Backend
	default:
		return nil, nil
	}

	slog.Info("Ledger backups enabled", "backend", backend.Name(), "object", appCfg.BackupObject, "interval", appCfg.BackupInterval)
	return backup.NewManager(backend, appCfg.BackupObject, logger), nil
}
