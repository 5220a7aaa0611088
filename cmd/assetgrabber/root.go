package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assetgrabber/assetgrabber/internal/cache"
	"github.com/assetgrabber/assetgrabber/internal/catalog"
	"github.com/assetgrabber/assetgrabber/internal/config"
	"github.com/assetgrabber/assetgrabber/internal/logging"
	"github.com/assetgrabber/assetgrabber/internal/repositories/repomanager"
)

var (
	cfgPath string

	rootCmd = &cobra.Command{
		Use:          "assetgrabber",
		Short:        "Mirror a remote plugin catalog into Postgres",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to JSON config file")
}

// app bundles the wired collaborators every command needs: config, logger,
// database handle (migrated), raw store, and catalog client.
type app struct {
	cfg    *config.Config
	log    logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  cache.Store
	client *catalog.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogFile)

	var store cache.Store
	if cfg.S3Bucket != "" {
		store, err = cache.NewS3Store(ctx, cache.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	} else {
		store, err = cache.NewDir(cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("raw store init: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	client := catalog.NewClient(catalog.Options{
		APIBaseURL: cfg.APIBaseURL,
		SVNURL:     cfg.SVNURL,
		TTL:        cfg.CacheTTL,
		UserAgents: cfg.UserAgents,
	}, store, log)

	return &app{cfg: cfg, log: log, db: db, repos: repos, store: store, client: client}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}
