package vectorstore

// FileMetadata is the denormalized file description stored with each
// record, used to render results without re-deriving from the id.
type FileMetadata struct {
	// FileName is the base name including extension.
	FileName string `json:"file_name"`

	// RelativePath is the path relative to the indexed root, with
	// forward-slash separators on every platform.
	RelativePath string `json:"relative_path"`

	// Extension is the file extension without the leading dot, empty
	// when the file has none.
	Extension string `json:"extension"`
}

// Record is one entry per indexed file, handed to Upsert without an
// embedding; the store computes the vector from Document.
type Record struct {
	// ID is a deterministic hash of RelativePath, stable across runs
	// and processes.
	ID string

	// Document is the canonical text description the embedder encodes.
	Document string

	// Metadata is the denormalized file description.
	Metadata FileMetadata
}

// Hit is a single query result. Not persisted.
type Hit struct {
	// ID is the record id of the matched file.
	ID string `json:"id"`

	// Score is a distance: lower means more similar.
	Score float32 `json:"score"`

	FileMetadata
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// Count is the number of records in the collection.
	Count int `json:"count"`

	// VectorSize is the embedding dimension bound at creation.
	VectorSize int `json:"vector_size"`

	// Root is the absolute directory the collection was indexed from,
	// empty if nothing has been indexed yet.
	Root string `json:"root"`
}
