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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
	"github.com/clipstream/simple-upload/pkg/simpleupload/api"
	"github.com/clipstream/simple-upload/pkg/simpleupload/cleanup"
	"github.com/clipstream/simple-upload/pkg/simpleupload/config"
	"github.com/clipstream/simple-upload/pkg/simpleupload/validate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	repo, err := cfg.BuildRepository(ctx)
	if err != nil {
		slog.Error("failed to build repository", "error", err)
		os.Exit(1)
	}

	store, err := cfg.BuildObjectStore()
	if err != nil {
		slog.Error("failed to build object store", "error", err)
		os.Exit(1)
	}

	cache, err := cfg.BuildURLCache()
	if err != nil {
		slog.Error("failed to build url cache", "error", err)
		os.Exit(1)
	}

	pool := cleanup.NewPool(store, cache,
		cleanup.WithWorkers(cfg.CleanupWorkers),
		cleanup.WithMaxAttempts(cfg.CleanupMaxAttempts),
		cleanup.WithLogger(logger),
	)
	pool.Start()

	svc, err := simpleupload.New(
		simpleupload.WithRepository(repo),
		simpleupload.WithObjectStore(store),
		simpleupload.WithURLCache(cache),
		simpleupload.WithCleanupQueue(pool),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
		simpleupload.WithValidator(simpleupload.MediaTypeAvatar, validate.ForMediaType(simpleupload.MediaTypeAvatar)),
		simpleupload.WithPartURLExpiry(cfg.PartURLTTL()),
		simpleupload.WithDownloadURLExpiry(cfg.DownloadURLTTL()),
	)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	videoHandler := api.NewMediaHandler(svc, simpleupload.MediaTypeVideo)
	avatarHandler := api.NewMediaHandler(svc, simpleupload.MediaTypeAvatar)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/videos", videoHandler.Routes())
	r.Mount("/avatars", avatarHandler.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Wait for in-flight cleanup tasks so deletes and aborts already being
	// executed are not cut off mid-call.
	if err := pool.Shutdown(shutdownCtx); err != nil {
		slog.Warn("cleanup pool shutdown timed out", "error", err)
	}

	slog.Info("server exiting")
}
