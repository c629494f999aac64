package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidLimit is returned when a query asks for k <= 0 results.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrEmptyQuery is returned when a query has no text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrDimensionMismatch is returned when a collection created with one
	// embedding dimension is opened with a provider of a different
	// dimension. This is a fatal configuration error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special characters, path traversal, and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Embedder generates vector embeddings from text.
//
// The store owns embedding computation: callers hand it document text
// and query text, never raw vectors.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension of the bound model.
	Dimension() int
}

// Store is the interface for vector storage of indexed file records.
//
// Collections are lazily created on first write and survive process
// restarts. All records in a collection share one embedding dimension,
// fixed when the collection is first created. Implementations must
// tolerate concurrent readers; writers are serialized internally, and
// whole clear+upsert batches are serialized via WriteLock.
//
// Implementations:
//   - ChromemStore: embedded chromem-go persistence (default)
//   - QdrantStore: external Qdrant over gRPC
type Store interface {
	// Upsert embeds each record's Document text via the bound Embedder
	// and inserts or replaces the record keyed by its ID. Writes are
	// atomic per id; the batch as a whole is not. The returned count is
	// the number of records durably written, which callers may trust on
	// partial failure. Upsert is idempotent, so retrying a failed batch
	// is safe. An empty batch is a no-op.
	Upsert(ctx context.Context, collection string, records []Record) (int, error)

	// Delete removes the records with the given ids. Deleting an id
	// that does not exist is a no-op, not an error.
	Delete(ctx context.Context, collection string, ids []string) error

	// Get returns the stored file metadata for the given ids, omitting
	// ids that are not present. No embeddings are touched.
	Get(ctx context.Context, collection string, ids []string) (map[string]FileMetadata, error)

	// ListIDs enumerates every record id in the collection, in a stable
	// order. Used to clear a collection before re-indexing.
	ListIDs(ctx context.Context, collection string) ([]string, error)

	// Query embeds text and returns up to k hits ordered by ascending
	// score (distance; lower = more similar). An empty or unknown
	// collection yields an empty slice. k <= 0 is ErrInvalidLimit.
	Query(ctx context.Context, collection string, text string, k int) ([]Hit, error)

	// SetRoot records the absolute directory a collection was indexed
	// from, so hits can later be resolved back to files on disk.
	SetRoot(ctx context.Context, collection string, root string) error

	// Info returns collection metadata: record count, bound embedding
	// dimension, and the indexed root (empty until SetRoot).
	Info(ctx context.Context, collection string) (*CollectionInfo, error)

	// WriteLock acquires the collection's writer lock and returns the
	// release func. Indexing runs hold it across the whole clear+upsert
	// batch so two concurrent runs cannot interleave.
	WriteLock(collection string) (release func())

	// Close releases backend resources.
	Close() error
}
