package vectorstore

import (
	"sync"

	"go.uber.org/zap"
)

// Provider is a process-wide cache of open Store handles.
//
// Serving layers receive a persist path per request; reopening the
// backing storage on every call would be wasteful, so handles are
// opened on first use, keyed by persist path, and kept for the process
// lifetime. Stores tolerate concurrent use, so one handle is safely
// shared across requests.
//
// The qdrant backend is a single remote server, so every persist path
// maps onto the same handle there.
type Provider struct {
	config   FactoryConfig
	embedder Embedder
	logger   *zap.Logger

	mu     sync.Mutex
	stores map[string]Store
}

// NewProvider creates a handle cache for the given backend config.
func NewProvider(cfg FactoryConfig, embedder Embedder, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		config:   cfg,
		embedder: embedder,
		logger:   logger,
		stores:   make(map[string]Store),
	}
}

// Get returns the Store for a persist path, opening it on first use.
// An empty persistPath selects the configured default.
func (p *Provider) Get(persistPath string) (Store, error) {
	if persistPath == "" {
		persistPath = p.config.Chromem.Path
	}
	key := persistPath
	if p.config.Provider == "qdrant" {
		key = "qdrant"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if store, ok := p.stores[key]; ok {
		return store, nil
	}

	cfg := p.config
	cfg.Chromem.Path = persistPath
	store, err := NewStore(cfg, p.embedder, p.logger)
	if err != nil {
		return nil, err
	}
	p.stores[key] = store
	p.logger.Info("opened vector store handle", zap.String("key", key))
	return store, nil
}

// Close closes every cached handle. Called at process shutdown only.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for key, store := range p.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.stores, key)
	}
	return firstErr
}
