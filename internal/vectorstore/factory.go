package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// FactoryConfig selects and configures a Store backend.
type FactoryConfig struct {
	// Provider is the backend: "chromem" (default) or "qdrant".
	Provider string

	Chromem ChromemConfig
	Qdrant  QdrantConfig
}

// NewStore creates a Store for the configured backend.
//
//   - "chromem" (default): embedded store, no external services.
//   - "qdrant": external Qdrant server over gRPC; the chromem persist
//     path is ignored.
func NewStore(cfg FactoryConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(cfg.Chromem, embedder, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
