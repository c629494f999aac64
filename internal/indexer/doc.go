// Package indexer scans directory trees into vector store collections.
//
// Ids are pure functions of the root-relative path, so indexing is
// idempotent: re-scanning an unchanged tree reproduces identical ids
// and overwrites in place. Moving or renaming a file produces a new id
// and orphans the old record until a clear-and-reindex run.
package indexer
