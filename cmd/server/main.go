package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/markview/internal/api"
	"github.com/dgallion1/markview/internal/artifact"
	"github.com/dgallion1/markview/internal/config"
	"github.com/dgallion1/markview/internal/pdfview"
	"github.com/dgallion1/markview/internal/session"
	"github.com/dgallion1/markview/internal/store"
	"github.com/dgallion1/markview/internal/thumbnail"
	"github.com/dgallion1/markview/internal/viewer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settings persistence.
	var settings session.SettingsStore
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(cfg.RedisURL, cfg.SettingsTTL)
		if err != nil {
			log.Error("redis unavailable", "error", err)
			os.Exit(1)
		}
		redisStore = rs
		settings = rs
		log.Info("settings store", "backend", "redis")
	} else {
		settings = store.NewMemoryStore(cfg.SettingsTTL)
		log.Info("settings store", "backend", "memory")
	}

	// Optional export archive.
	var archive api.Archiver
	if cfg.ArchiveEnabled() {
		a, err := artifact.Connect(ctx, artifact.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		}, log)
		if err != nil {
			log.Error("archive unavailable", "error", err)
			os.Exit(1)
		}
		archive = a
	}

	// Session registry and thumbnail workers.
	manager := session.NewManager(session.ManagerConfig{
		SessionTTL:   cfg.SessionTTL,
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		Thumbnails:   thumbnail.Config{MaxPages: cfg.ThumbnailMaxPages},
	}, func() viewer.Viewer { return pdfview.New(log) }, settings, log)
	manager.Start(ctx)

	srv := api.NewServer(manager, archive, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		manager.Stop()
		if redisStore != nil {
			redisStore.Close()
		}
	}()

	log.Info("starting markview", "port", cfg.Port, "workers", cfg.WorkerCount, "archive", cfg.ArchiveEnabled())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
