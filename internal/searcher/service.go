// Package searcher runs nearest-neighbor queries against indexed
// collections.
package searcher

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/vectorstore"
)

// Limits clamps caller-supplied result limits.
type Limits struct {
	// Default applies when the caller gives no limit.
	Default int
	// Max caps any request.
	Max int
}

// DefaultLimits matches the documented 1..100 bound with 10 results by
// default.
var DefaultLimits = Limits{Default: 10, Max: 100}

// Service validates queries and delegates to the store.
type Service struct {
	store  vectorstore.Store
	limits Limits
	logger *zap.Logger
}

// NewService creates a query engine over the given store.
func NewService(store vectorstore.Store, limits Limits, logger *zap.Logger) *Service {
	if limits.Default <= 0 {
		limits.Default = DefaultLimits.Default
	}
	if limits.Max <= 0 {
		limits.Max = DefaultLimits.Max
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, limits: limits, logger: logger}
}

// Search embeds query text and returns hits ordered by ascending
// distance. The limit is clamped into [1, Max]; zero selects the
// default. An empty collection yields an empty slice, not an error.
func (s *Service) Search(ctx context.Context, collection, query string, limit int) ([]vectorstore.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, vectorstore.ErrEmptyQuery
	}
	limit = s.clamp(limit)

	hits, err := s.store.Query(ctx, collection, query, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search completed",
		zap.String("collection", collection),
		zap.Int("limit", limit),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

func (s *Service) clamp(limit int) int {
	switch {
	case limit == 0:
		return s.limits.Default
	case limit < 1:
		return 1
	case limit > s.limits.Max:
		return s.limits.Max
	default:
		return limit
	}
}
