package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/config"
	"github.com/parchment-dev/kbase/internal/embeddings"
	"github.com/parchment-dev/kbase/internal/project"
	"github.com/parchment-dev/kbase/internal/server"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowledge base HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("constructing embedding provider: %w", err)
	}
	defer provider.Close()

	embedder := embeddings.NewMemoizedEmbedder(provider.Embedder(), cfg.KnowledgeBase.MaxCacheSize)

	newStore := func() (vectorstore.Store, error) {
		return vectorstore.NewStore(cfg, embedder, logger)
	}

	manager, err := project.NewManager(project.ManagerConfig{
		DBPath:        cfg.Project.DSN,
		VectorSize:    cfg.VectorStore.Chromem.VectorSize,
		CacheCapacity: cfg.KnowledgeBase.MaxCacheSize,
	}, newStore, logger)
	if err != nil {
		return fmt.Errorf("constructing project manager: %w", err)
	}
	defer manager.Close()

	var natsConn *nats.Conn
	if cfg.Nats.URL != "" {
		natsConn, err = nats.Connect(cfg.Nats.URL, nats.RetryOnFailedConnect(true), nats.MaxReconnects(5))
		if err != nil {
			logger.Warn("connecting to NATS, notifications disabled", zap.Error(err))
		} else {
			defer natsConn.Close()
		}
	}

	srv := server.New(manager, embedder, cfg.KnowledgeBase, cfg.Repository, logger, natsConn)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("kbase server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Observability.EnableTelemetry {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
