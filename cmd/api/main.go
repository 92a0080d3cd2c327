package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"member-directory/internal/api"
	"member-directory/internal/config"
	"member-directory/internal/db"
	"member-directory/internal/directory"
	"member-directory/internal/identity"
	"member-directory/internal/logging"
	"member-directory/internal/processor"
	"member-directory/internal/profile"
	"member-directory/internal/redis"
	"member-directory/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api",
		"service", "member-directory-api",
		"http_addr", cfg.HTTPAddr,
		"webhook_secret", logging.MaskSecret(cfg.WebhookSecretRaw),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Connect to Redis
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	repo := profile.NewRepository(logger, dbConn, redisClient)
	dirEngine := directory.NewEngine(logger, dbConn, cfg.DirectoryOrder)
	events := processor.NewEventProcessor(logger, repo, redisClient)

	// Without an S3 endpoint, photos go to the in-memory simulator. Fine for
	// local development, objects do not survive a restart.
	var photos storage.PhotoStore
	if cfg.S3Endpoint != "" {
		photos, err = storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			logger.Error("storage_init_failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("storage_simulator_active", "bucket", cfg.S3Bucket)
		photos = storage.NewSimulator(cfg.S3Bucket, cfg.S3PublicURL)
	}

	provider := identity.NewClient(logger, cfg.IdentityAPIURL, cfg.IdentityAPIKey)

	srv := api.NewServer(logger, dbConn, redisClient, cfg, repo, dirEngine, events, photos, provider)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("api_stopped")
}
