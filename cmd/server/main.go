package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodshare_backend/internal/app/config"
	"foodshare_backend/internal/app/di"
	"foodshare_backend/internal/feature/posts/adapters/vision"
	"foodshare_backend/internal/platform/logger"
	"foodshare_backend/internal/platform/storage"
)

const (
	sweepInterval   = time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	l, syncLogs, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = syncLogs() }()
	slog.SetDefault(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := di.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			slog.Error("failed to close stores", "error", err)
		}
	}()

	images, err := storage.NewLocalStore(cfg.Posts.UploadDir, storage.DefaultURLPrefix)
	if err != nil {
		return err
	}

	deps := di.Deps{
		Config: cfg,
		Logger: l,
		DB:     stores.DB,
		Redis:  stores.Redis,
		Mongo:  stores.Mongo,
		Images: images,
	}
	if cfg.Posts.ImageLabels {
		labeler, err := vision.NewVisionLabeler(ctx)
		if err != nil {
			slog.Warn("image labeling disabled", "error", err)
		} else {
			defer func() { _ = labeler.Close() }()
			deps.Labeler = labeler
		}
	}

	app, err := di.NewApp(ctx, deps)
	if err != nil {
		return err
	}
	go app.RunSweeper(ctx, sweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			"addr", srv.Addr,
			"post_store", cfg.Posts.Store,
			"location_index", cfg.Posts.LocationIndex,
			"redis", stores.Redis != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
