// Findexd is a semantic file-search daemon.
//
// It indexes directory contents by embedding each entry's name, path,
// and extension into a vector collection, and serves nearest-neighbor
// search plus file resolution over HTTP.
//
// Configuration is loaded from a YAML file with FINDEX_-prefixed
// environment overrides. See internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	findexd
//
//	# Custom config file
//	findexd --config /etc/findex/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/config"
	"github.com/fyrsmithlabs/findex/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/findex/internal/http"
	"github.com/fyrsmithlabs/findex/internal/indexer"
	"github.com/fyrsmithlabs/findex/internal/logging"
	"github.com/fyrsmithlabs/findex/internal/searcher"
	"github.com/fyrsmithlabs/findex/internal/telemetry"
	"github.com/fyrsmithlabs/findex/internal/vectorstore"
	"github.com/fyrsmithlabs/findex/internal/watcher"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("findexd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the findexd server and blocks until the context is
// cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	// Logs flow to stderr and, when telemetry is enabled, through the
	// OTLP log pipeline as well.
	logger, err := logging.NewWithOTel(cfg.Logging.Level, cfg.Logging.Format, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting findexd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider))

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("initialize embedding provider: %w", err)
	}
	defer func() {
		_ = embedder.Close()
	}()

	logger.Info("embedding provider initialized",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", embedder.Dimension()))

	provider := vectorstore.NewProvider(vectorstore.FactoryConfig{
		Provider: cfg.VectorStore.Provider,
		Chromem: vectorstore.ChromemConfig{
			Path:     cfg.VectorStore.PersistPath,
			Compress: cfg.VectorStore.Compress,
			Model:    cfg.Embeddings.Model,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.VectorStore.Qdrant.Host,
			Port:   cfg.VectorStore.Qdrant.Port,
			UseTLS: cfg.VectorStore.Qdrant.UseTLS,
			Model:  cfg.Embeddings.Model,
		},
	}, embedder, logger)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("vector store close failed", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(provider, logger, &httpserver.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		DefaultCollection: cfg.VectorStore.DefaultCollection,
		Limits: searcher.Limits{
			Default: cfg.Search.DefaultLimit,
			Max:     cfg.Search.MaxLimit,
		},
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	if cfg.Watch.Enabled {
		store, err := provider.Get("")
		if err != nil {
			return fmt.Errorf("open vector store for watch: %w", err)
		}
		w, err := watcher.New(watcher.Options{
			Collection:  cfg.Watch.Collection,
			Directory:   cfg.Watch.Directory,
			Recursive:   cfg.Watch.Recursive,
			ExcludeDirs: cfg.Watch.ExcludeDirs,
			Debounce:    cfg.Watch.Debounce,
		}, indexer.NewService(store, logger), logger)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		logger.Info("watching directory",
			zap.String("directory", cfg.Watch.Directory),
			zap.String("collection", cfg.Watch.Collection),
			zap.Duration("debounce", cfg.Watch.Debounce))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
