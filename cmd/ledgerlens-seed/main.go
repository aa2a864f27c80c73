package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/seed"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

func main() {
	cfg, err := config.LoadFromEnv("ledgerlens-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := warehouse.Open(ctx, warehouse.DBConfig{
		Driver:          cfg.Warehouse.Driver,
		DSN:             cfg.Warehouse.DSN,
		MaxOpenConns:    cfg.Warehouse.MaxOpenConns,
		MaxIdleConns:    cfg.Warehouse.MaxIdleConns,
		ConnMaxIdleTime: cfg.Warehouse.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Warehouse.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open warehouse db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store, err := warehouse.New(db, warehouse.Options{
		Driver:        cfg.Warehouse.Driver,
		AccountColumn: cfg.Warehouse.AccountColumn,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize warehouse", slog.Any("error", err))
		os.Exit(1)
	}

	service, err := seed.NewService(seedCfg, store, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding started",
		slog.String("table", seedCfg.Table),
		slog.Int("accounts", seedCfg.Accounts),
		slog.Int("rows_per_account", seedCfg.RowsPerAccount),
		slog.Int64("seed", seedCfg.Seed),
	)
	summary, err := service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("seeding failed", slog.Any("error", err), slog.Int("inserted", summary.Inserted))
		os.Exit(1)
	}
	logger.Info("seeding finished",
		slog.Int("inserted", summary.Inserted),
		slog.Int("rejected", summary.Rejected),
		slog.Any("accounts", summary.Accounts),
	)
}
