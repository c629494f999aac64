package http

import "time"

// IndexRequest is the request body for POST /api/v1/index.
type IndexRequest struct {
	// PersistPath selects the vector store location. Empty uses the
	// configured default.
	PersistPath string `json:"persist_path,omitempty"`
	// Collection receives the indexed records. Empty uses the
	// configured default.
	Collection string `json:"collection,omitempty"`
	// Directory is the root to index. Required.
	Directory string `json:"directory"`
	// Recursive descends into subdirectories. Defaults to true.
	Recursive *bool `json:"recursive,omitempty"`
	// ClearFirst removes existing records before indexing. Defaults to
	// true.
	ClearFirst *bool `json:"clear_first,omitempty"`
	// ExcludeDirs lists directory names skipped during the scan.
	ExcludeDirs []string `json:"exclude_dirs,omitempty"`
}

// IndexResponse is the response body for POST /api/v1/index.
type IndexResponse struct {
	Collection   string    `json:"collection"`
	Root         string    `json:"root"`
	FilesIndexed int       `json:"files_indexed"`
	Cleared      int       `json:"cleared"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	PersistPath string `json:"persist_path,omitempty"`
	Collection  string `json:"collection,omitempty"`
	// Query is the natural-language search text. Required.
	Query string `json:"query"`
	// Limit caps the number of hits. Zero selects the default.
	Limit int `json:"limit,omitempty"`
}

// SearchHit is one result in a SearchResponse, ordered most similar
// first.
type SearchHit struct {
	ID           string  `json:"id"`
	Score        float32 `json:"score"`
	FileName     string  `json:"file_name"`
	RelativePath string  `json:"relative_path"`
	Extension    string  `json:"extension"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Collection string      `json:"collection"`
	Hits       []SearchHit `json:"hits"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
