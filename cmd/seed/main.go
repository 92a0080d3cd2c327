package main

import (
	"context"
	"flag"
	"os"
	"time"

	"member-directory/internal/config"
	"member-directory/internal/db"
	"member-directory/internal/logging"
	"member-directory/internal/profile"
	"member-directory/internal/redis"
	"member-directory/internal/seed"
)

func main() {
	var (
		filePath  = flag.String("file", "seed/members.json", "path to the seed members JSON file")
		startCode = flag.Int("start-code-id", 0, "first display-order value; 0 continues after the current maximum")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_seed", "file", *filePath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	members, err := seed.Load(*filePath)
	if err != nil {
		logger.Error("seed_load_failed", "error", err)
		os.Exit(1)
	}
	if len(members) == 0 {
		logger.Info("seed_file_empty", "file", *filePath)
		return
	}

	nextCodeID := *startCode
	if nextCodeID <= 0 {
		if err := dbConn.Pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(code_id), 0) + 1 FROM profiles`,
		).Scan(&nextCodeID); err != nil {
			logger.Error("code_id_lookup_failed", "error", err)
			os.Exit(1)
		}
	}

	repo := profile.NewRepository(logger, dbConn, redisClient)
	importer := seed.NewImporter(logger, dbConn, repo.Slugs())

	inserted, err := importer.Import(ctx, members, nextCodeID)
	if err != nil {
		logger.Error("seed_import_failed", "error", err)
		os.Exit(1)
	}

	// imported rows change every public view
	keys := append([]string{redis.KeyDirectory, redis.KeyDirectoryCount}, redis.AllFacetKeys()...)
	if err := redisClient.Invalidate(ctx, keys...); err != nil {
		logger.Warn("cache_invalidation_failed", "error", err)
	}

	logger.Info("seed_finished", "inserted", inserted, "first_code_id", nextCodeID)
}
