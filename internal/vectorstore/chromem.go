package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("findex.vectorstore.chromem")

// Chromem metadata keys mirrored from FileMetadata.
const (
	metaFileName     = "file_name"
	metaRelativePath = "relative_path"
	metaExtension    = "extension"
)

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Model names the embedding model, recorded per collection so a
	// provider swap is visible in the catalog.
	Model string
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: persist path required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with no external service
// dependencies: pure Go, exact cosine search, gob persistence. Each
// collection gets a JSON catalog sidecar (see catalog) for the parts of
// the Store contract chromem does not cover.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	// catalogs caches loaded collection catalogs by name.
	catalogs   sync.Map
	catalogsMu sync.Mutex

	// writeLocks serializes whole clear+upsert batches per collection.
	writeLocks sync.Map

	// opLocks serializes individual mutations per collection.
	opLocks sync.Map
}

// NewChromemStore creates a ChromemStore rooted at config.Path.
// Opening the same path twice returns independent handles onto the same
// data; use Provider to share one handle per path process-wide.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}
	config.Path = expandedPath

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", embedder.Dimension()),
	)
	return store, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// createEmbeddingFunc adapts the Embedder to chromem's query-side hook.
func (s *ChromemStore) createEmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// catalogPath returns the sidecar location for a collection.
func (s *ChromemStore) catalogPath(name string) string {
	return filepath.Join(s.config.Path, "catalogs", name+".json")
}

// catalog loads (once) or creates the catalog for a collection,
// binding the embedding dimension on first creation.
func (s *ChromemStore) catalog(name string) (*catalog, error) {
	if cat, ok := s.catalogs.Load(name); ok {
		return cat.(*catalog), nil
	}
	s.catalogsMu.Lock()
	defer s.catalogsMu.Unlock()
	if cat, ok := s.catalogs.Load(name); ok {
		return cat.(*catalog), nil
	}
	cat, err := loadCatalog(s.catalogPath(name), s.embedder.Dimension(), s.config.Model)
	if err != nil {
		return nil, err
	}
	s.catalogs.Store(name, cat)
	return cat, nil
}

// mutexFor returns the per-collection mutex held in m.
func mutexFor(m *sync.Map, name string) *sync.Mutex {
	mu, _ := m.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WriteLock acquires the collection's batch writer lock.
func (s *ChromemStore) WriteLock(collection string) (release func()) {
	mu := mutexFor(&s.writeLocks, collection)
	mu.Lock()
	return mu.Unlock
}

// Upsert embeds and writes records. Each id is written atomically; on
// failure the returned count reports how many records were committed.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	cat, err := s.catalog(collection)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Document
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	mu := mutexFor(&s.opLocks, collection)
	mu.Lock()
	defer mu.Unlock()

	col, err := s.db.GetOrCreateCollection(collection, nil, s.createEmbeddingFunc())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}

	written := 0
	committed := make(map[string]FileMetadata, len(records))
	for i, rec := range records {
		doc := chromem.Document{
			ID:      rec.ID,
			Content: rec.Document,
			Metadata: map[string]string{
				metaFileName:     rec.Metadata.FileName,
				metaRelativePath: rec.Metadata.RelativePath,
				metaExtension:    rec.Metadata.Extension,
			},
			Embedding: embeddings[i],
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			if catErr := cat.upsertAll(committed); catErr != nil {
				s.logger.Error("catalog update failed after partial upsert", zap.Error(catErr))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return written, fmt.Errorf("upserting record %s: %w", rec.ID, err)
		}
		committed[rec.ID] = rec.Metadata
		written++
	}

	if err := cat.upsertAll(committed); err != nil {
		span.RecordError(err)
		return written, err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records",
		zap.String("collection", collection),
		zap.Int("count", written),
	)
	return written, nil
}

// Delete removes records by id. Missing ids are no-ops.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	cat, err := s.catalog(collection)
	if err != nil {
		span.RecordError(err)
		return err
	}

	mu := mutexFor(&s.opLocks, collection)
	mu.Lock()
	defer mu.Unlock()

	if col := s.db.GetCollection(collection, s.createEmbeddingFunc()); col != nil {
		if err := col.Delete(ctx, nil, nil, ids...); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("deleting from collection %s: %w", collection, err)
		}
	}
	if err := cat.deleteAll(ids); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("deleted records",
		zap.String("collection", collection),
		zap.Int("count", len(ids)),
	)
	return nil
}

// Get returns stored metadata for the given ids, omitting missing ones.
func (s *ChromemStore) Get(ctx context.Context, collection string, ids []string) (map[string]FileMetadata, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	cat, err := s.catalog(collection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cat.lookup(ids), nil
}

// ListIDs enumerates every record id, sorted.
func (s *ChromemStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListIDs")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	cat, err := s.catalog(collection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cat.ids(), nil
}

// Query embeds text and returns up to k hits by ascending distance.
func (s *ChromemStore) Query(ctx context.Context, collection string, text string, k int) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, k)
	}
	if text == "" {
		return nil, ErrEmptyQuery
	}

	// Opening with a mismatched provider must fail even on reads.
	if _, err := s.catalog(collection); err != nil {
		span.RecordError(err)
		return nil, err
	}

	col := s.db.GetCollection(collection, s.createEmbeddingFunc())
	if col == nil {
		// Never-written collection behaves as empty.
		return []Hit{}, nil
	}

	// chromem requires nResults <= document count.
	docCount := col.Count()
	if docCount == 0 {
		return []Hit{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := col.Query(ctx, text, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	// chromem returns cosine similarity sorted descending; expose a
	// distance so lower is better and the order stays stable.
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:    r.ID,
			Score: 1 - r.Similarity,
			FileMetadata: FileMetadata{
				FileName:     r.Metadata[metaFileName],
				RelativePath: r.Metadata[metaRelativePath],
				Extension:    r.Metadata[metaExtension],
			},
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("queried collection",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("results", len(hits)),
	)
	return hits, nil
}

// SetRoot records the directory a collection was indexed from.
func (s *ChromemStore) SetRoot(ctx context.Context, collection string, root string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.SetRoot")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	cat, err := s.catalog(collection)
	if err != nil {
		return err
	}
	return cat.setRoot(root)
}

// Info returns collection metadata.
func (s *ChromemStore) Info(ctx context.Context, collection string) (*CollectionInfo, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Info")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	cat, err := s.catalog(collection)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:       collection,
		Count:      cat.count(),
		VectorSize: cat.vectorSize(),
		Root:       cat.root(),
	}, nil
}

// Close closes the store. chromem persists on every write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed", zap.String("path", s.config.Path))
	return nil
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
