package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsTransientError reports whether a Qdrant error is worth retrying.
// Network timeouts and temporary unavailability are transient; invalid
// arguments, not-found, and permission errors are not.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("findex.vectorstore.qdrant")

// Qdrant payload keys. Record ids are SHA-256 hex strings, which Qdrant
// does not accept as point ids, so each point gets a deterministic
// UUIDv5 derived from the record id and carries the original id in its
// payload.
const (
	payloadRecordID = "record_id"
	payloadKind     = "kind"
	kindManifest    = "manifest"
)

// scrollPageSize bounds a single Scroll request during enumeration.
const scrollPageSize = 256

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by default, not the 6333 REST
	// port).
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Model names the embedding model, recorded in each collection's
	// manifest point.
	Model string
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantStore implements Store using Qdrant's native gRPC client.
//
// Each collection holds one reserved manifest point carrying the
// indexed root, bound dimension, and model name; it is excluded from
// queries and enumeration by a payload filter.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	// collections caches which collections have been verified.
	collections sync.Map

	// writeLocks serializes whole clear+upsert batches per collection.
	writeLocks sync.Map
}

// NewQdrantStore creates a QdrantStore and verifies connectivity.
func NewQdrantStore(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if _, err := client.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Int("vector_size", embedder.Dimension()),
	)
	return &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// pointIDFor maps a record id onto a deterministic Qdrant point UUID.
func pointIDFor(recordID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String())
}

// manifestPointID is the reserved per-collection manifest point.
func manifestPointID() *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte("findex/manifest")).String())
}

// notManifest excludes the manifest point from queries and scans.
func notManifest() *qdrant.Filter {
	return &qdrant.Filter{
		MustNot: []*qdrant.Condition{qdrant.NewMatch(payloadKind, kindManifest)},
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

// ensureCollection creates the collection and its manifest point on
// first use, and verifies the bound dimension afterwards.
func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if _, ok := s.collections.Load(name); ok {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	dim := s.embedder.Dimension()

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		if err := s.writeManifest(ctx, name, ""); err != nil {
			return err
		}
	} else {
		manifest, err := s.readManifest(ctx, name)
		if err != nil {
			return err
		}
		if manifest != nil {
			if got := manifest.Payload["vector_size"].GetIntegerValue(); got != 0 && got != int64(dim) {
				return fmt.Errorf("%w: collection was created with dimension %d, provider produces %d",
					ErrDimensionMismatch, got, dim)
			}
		}
	}

	s.collections.Store(name, true)
	return nil
}

// writeManifest upserts the reserved manifest point. The manifest
// carries a throwaway unit vector because Qdrant points require one.
func (s *QdrantStore) writeManifest(ctx context.Context, name, root string) error {
	dim := s.embedder.Dimension()
	vec := make([]float32, dim)
	if dim > 0 {
		vec[0] = 1
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      manifestPointID(),
			Vectors: qdrant.NewVectors(vec...),
			Payload: map[string]*qdrant.Value{
				payloadKind:   stringValue(kindManifest),
				"root":        stringValue(root),
				"vector_size": intValue(int64(dim)),
				"model":       stringValue(s.config.Model),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("writing manifest for %s: %w", name, err)
	}
	return nil
}

// readManifest fetches the manifest point, or nil if absent.
func (s *QdrantStore) readManifest(ctx context.Context, name string) (*qdrant.RetrievedPoint, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            []*qdrant.PointId{manifestPointID()},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", name, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return points[0], nil
}

// WriteLock acquires the collection's batch writer lock. The lock is
// process-local; Qdrant itself serializes individual point writes.
func (s *QdrantStore) WriteLock(collection string) (release func()) {
	mu := mutexFor(&s.writeLocks, collection)
	mu.Lock()
	return mu.Unlock
}

// Upsert embeds and writes records in one wait=true call; Qdrant point
// writes are idempotent by id.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return 0, nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
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

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &qdrant.PointStruct{
			Id:      pointIDFor(rec.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: map[string]*qdrant.Value{
				payloadRecordID:  stringValue(rec.ID),
				"content":        stringValue(rec.Document),
				metaFileName:     stringValue(rec.Metadata.FileName),
				metaRelativePath: stringValue(rec.Metadata.RelativePath),
				metaExtension:    stringValue(rec.Metadata.Extension),
			},
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("upserting points: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)
	return len(records), nil
}

// Delete removes records by id. Missing ids are no-ops.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		return err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointIDFor(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Get returns stored metadata for the given ids, omitting missing ones.
func (s *QdrantStore) Get(ctx context.Context, collection string, ids []string) (map[string]FileMetadata, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		return nil, err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointIDFor(id)
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting points: %w", err)
	}

	out := make(map[string]FileMetadata, len(points))
	for _, p := range points {
		id := p.Payload[payloadRecordID].GetStringValue()
		if id == "" {
			continue
		}
		out[id] = payloadMetadata(p.Payload)
	}
	return out, nil
}

// ListIDs enumerates all record ids by scrolling the collection.
func (s *QdrantStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.ListIDs")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			Filter:         notManifest(),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scrolling collection %s: %w", collection, err)
		}
		for _, p := range points {
			id := p.Payload[payloadRecordID].GetStringValue()
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if len(points) < scrollPageSize {
			break
		}
		offset = points[len(points)-1].GetId()
	}
	return ids, nil
}

// Query embeds text and returns up to k hits by ascending distance.
func (s *QdrantStore) Query(ctx context.Context, collection string, text string, k int) ([]Hit, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, k)
	}
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		return nil, err
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         notManifest(),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	// Qdrant returns cosine similarity sorted descending; expose a
	// distance so lower is better.
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:           r.Payload[payloadRecordID].GetStringValue(),
			Score:        1 - r.Score,
			FileMetadata: payloadMetadata(r.Payload),
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// SetRoot records the indexed root in the manifest point.
func (s *QdrantStore) SetRoot(ctx context.Context, collection string, root string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.SetRoot")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}
	return s.writeManifest(ctx, collection, root)
}

// Info returns collection metadata.
func (s *QdrantStore) Info(ctx context.Context, collection string) (*CollectionInfo, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Info")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := s.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         notManifest(),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting collection %s: %w", collection, err)
	}

	info := &CollectionInfo{
		Name:       collection,
		Count:      int(count),
		VectorSize: s.embedder.Dimension(),
	}
	manifest, err := s.readManifest(ctx, collection)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		info.Root = manifest.Payload["root"].GetStringValue()
	}
	return info, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	s.logger.Info("qdrant store closed")
	return s.client.Close()
}

// payloadMetadata extracts file metadata fields from a point payload.
func payloadMetadata(payload map[string]*qdrant.Value) FileMetadata {
	return FileMetadata{
		FileName:     payload[metaFileName].GetStringValue(),
		RelativePath: payload[metaRelativePath].GetStringValue(),
		Extension:    payload[metaExtension].GetStringValue(),
	}
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)
