// Package vectorstore provides persistent vector storage for indexed
// file records.
//
// The Store interface abstracts the concrete engine so backends can be
// substituted: ChromemStore embeds chromem-go for zero-dependency local
// persistence, QdrantStore talks to an external Qdrant server over
// gRPC. Both honor the same contracts: idempotent per-id upsert,
// embedding computed by the store from document text, and query results
// ordered by ascending distance (lower = more similar).
//
// Handles are shared process-wide through Provider, keyed by persist
// path, and are safe for concurrent readers; writers are serialized per
// collection, with WriteLock covering whole clear+upsert batches.
package vectorstore
