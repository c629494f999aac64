package indexer

import "time"

// IndexOptions controls a single indexing run.
type IndexOptions struct {
	// Collection receives the records.
	Collection string

	// Directory is the tree to scan. Required.
	Directory string

	// Recursive scans the full subtree; otherwise only immediate
	// children are considered.
	Recursive bool

	// ClearFirst removes every existing record before scanning, so
	// stale entries from a previous scan of a different tree cannot
	// linger.
	ClearFirst bool

	// ExcludeDirs lists directory names to skip while walking
	// (".git", "node_modules", ...). Empty means nothing is skipped.
	ExcludeDirs []string
}

// IndexResult reports the outcome of an indexing run.
type IndexResult struct {
	// Collection is the collection that was written.
	Collection string `json:"collection"`

	// Root is the absolute directory that was scanned.
	Root string `json:"root"`

	// FilesIndexed is the number of files upserted. Zero for an empty
	// directory; that is a success, not an error.
	FilesIndexed int `json:"files_indexed"`

	// Cleared is the number of pre-existing records removed when
	// ClearFirst was set.
	Cleared int `json:"cleared"`

	// IndexedAt is when the run completed.
	IndexedAt time.Time `json:"indexed_at"`
}
