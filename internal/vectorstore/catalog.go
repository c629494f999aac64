package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// catalog is the JSON sidecar persisted next to a chromem collection.
//
// chromem-go exposes neither metadata-only lookup nor id enumeration,
// and has no per-collection metadata slot, so the catalog carries what
// the store contract needs beyond vectors: the indexed root, the bound
// embedding dimension and model, and an id -> file metadata map.
type catalog struct {
	mu   sync.RWMutex
	path string
	data catalogData
}

type catalogData struct {
	Root       string                  `json:"root,omitempty"`
	VectorSize int                     `json:"vector_size"`
	Model      string                  `json:"model,omitempty"`
	Records    map[string]FileMetadata `json:"records"`
}

// loadCatalog opens or creates the catalog for a collection. The
// embedding dimension is bound on first creation; opening an existing
// catalog with a different dimension fails with ErrDimensionMismatch.
func loadCatalog(path string, vectorSize int, model string) (*catalog, error) {
	c := &catalog{
		path: path,
		data: catalogData{
			VectorSize: vectorSize,
			Model:      model,
			Records:    make(map[string]FileMetadata),
		},
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var data catalogData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if data.Records == nil {
		data.Records = make(map[string]FileMetadata)
	}
	if data.VectorSize != vectorSize {
		return nil, fmt.Errorf("%w: collection was created with dimension %d, provider produces %d",
			ErrDimensionMismatch, data.VectorSize, vectorSize)
	}
	c.data = data
	return c, nil
}

// save writes the catalog atomically via a temp file rename.
// Caller must hold c.mu.
func (c *catalog) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}
	content, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	return nil
}

// upsertAll records metadata for the given ids and persists.
func (c *catalog) upsertAll(records map[string]FileMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, meta := range records {
		c.data.Records[id] = meta
	}
	return c.save()
}

// deleteAll removes the given ids and persists. Missing ids are no-ops.
func (c *catalog) deleteAll(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.data.Records, id)
	}
	return c.save()
}

// setRoot records the indexed root directory and persists.
func (c *catalog) setRoot(root string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Root = root
	return c.save()
}

// lookup returns metadata for the given ids, omitting missing ones.
func (c *catalog) lookup(ids []string) map[string]FileMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]FileMetadata, len(ids))
	for _, id := range ids {
		if meta, ok := c.data.Records[id]; ok {
			out[id] = meta
		}
	}
	return out
}

// ids returns every record id in sorted order.
func (c *catalog) ids() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.data.Records))
	for id := range c.data.Records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *catalog) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Records)
}

func (c *catalog) root() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Root
}

func (c *catalog) vectorSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.VectorSize
}
