package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/agent"
	"github.com/ledgerlens/ledgerlens/internal/api"
	"github.com/ledgerlens/ledgerlens/internal/api/uistatic"
	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/checker"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/examples"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/prompt"
	"github.com/ledgerlens/ledgerlens/internal/sqlguard"
	"github.com/ledgerlens/ledgerlens/internal/storage"
	s3store "github.com/ledgerlens/ledgerlens/internal/storage/s3"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

func main() {
	cfg, err := config.LoadFromEnv("ledgerlens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	db, err := warehouse.Open(startCtx, warehouse.DBConfig{
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

	pipeline, err := buildPipeline(startCtx, cfg, store, logger)
	if err != nil {
		logger.Error("failed to initialize question pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:           logger,
		Pipeline:         pipeline,
		Warehouse:        store,
		DependencyTimout: time.Second,
	}

	var objectReady api.ReadinessCheck
	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(startCtx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		archive, err := storage.NewArchive(objectStore)
		if err != nil {
			logger.Error("failed to initialize archive", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archive = archive
		objectReady = objectStore.Ready
	}
	deps.Readiness = api.CombineReadinessChecks(
		api.CheckWarehouse(store),
		api.CheckObjectStore(cfg, objectReady),
	)

	if cfg.UI.StaticDir != "" {
		ui, err := uistatic.Handler(cfg.UI.StaticDir)
		if err != nil {
			logger.Error("failed to load ui assets", slog.Any("error", err))
			os.Exit(1)
		}
		deps.UI = ui
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("warehouse_driver", cfg.Warehouse.Driver),
			slog.String("table", cfg.Warehouse.TargetTable),
			slog.String("ai_provider", cfg.AI.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// buildPipeline embeds the example collection once at startup, so a slow
// embedding backend delays readiness rather than the first question.
func buildPipeline(ctx context.Context, cfg config.Config, store *warehouse.Warehouse, logger *slog.Logger) (*agent.Pipeline, error) {
	completer, err := llm.NewCompleter(cfg.AI)
	if err != nil {
		return nil, err
	}
	embedder, err := llm.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	collection, err := examples.Load(cfg.Examples.Path)
	if err != nil {
		return nil, err
	}
	exampleStore, err := examples.New(ctx, embedder, collection)
	if err != nil {
		return nil, err
	}
	template, err := prompt.LoadTemplate(cfg.Examples.PrefixPath, cfg.Examples.SuffixPath, exampleStore.HasDescriptions())
	if err != nil {
		return nil, err
	}

	reviewer, err := checker.New(checker.Config{
		Completer: completer,
		Warehouse: store,
		Table:     cfg.Warehouse.TargetTable,
		Examples:  exampleStore,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	generator, err := agent.New(agent.Config{
		Completer:     completer,
		Retriever:     exampleStore,
		Checker:       reviewer,
		Template:      template,
		K:             cfg.Examples.K,
		MaxIterations: cfg.AI.MaxIterations,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	rewriter, err := sqlguard.NewRewriter(cfg.Warehouse.TargetTable, store)
	if err != nil {
		return nil, err
	}
	return agent.NewPipeline(generator, rewriter, store, logger)
}
