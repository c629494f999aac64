// Package resolver maps indexed record ids back to readable files on
// disk.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/vectorstore"
)

var (
	// ErrNotFound indicates the id is not present in the collection.
	ErrNotFound = errors.New("record not found")
	// ErrStalePath indicates the record exists but its file no longer
	// does, or is no longer a regular file.
	ErrStalePath = errors.New("indexed path is stale")
	// ErrNoRoot indicates the collection has never been indexed from a
	// directory, so relative paths cannot be resolved.
	ErrNoRoot = errors.New("collection has no indexed root")
	// ErrPathEscapesRoot indicates the stored relative path would
	// resolve outside the collection root.
	ErrPathEscapesRoot = errors.New("path escapes collection root")
)

// Resolved is a record joined with its on-disk location.
type Resolved struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	RelativePath string `json:"relative_path"`
	Extension    string `json:"extension"`
	AbsolutePath string `json:"absolute_path"`
	Size         int64  `json:"size"`
}

// Service resolves record ids against a store.
type Service struct {
	store  vectorstore.Store
	logger *zap.Logger
}

// NewService creates a resolver over the given store.
func NewService(store vectorstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Resolve looks up a record id and verifies that the file it points at
// still exists as a regular file under the collection root.
func (s *Service) Resolve(ctx context.Context, collection, id string) (*Resolved, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	metas, err := s.store.Get(ctx, collection, []string{id})
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	meta, ok := metas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info, err := s.store.Info(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}
	if info.Root == "" {
		return nil, ErrNoRoot
	}

	abs, err := joinUnderRoot(info.Root, meta.RelativePath)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStalePath, abs)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrStalePath, abs)
	}

	return &Resolved{
		ID:           id,
		FileName:     meta.FileName,
		RelativePath: meta.RelativePath,
		Extension:    meta.Extension,
		AbsolutePath: abs,
		Size:         st.Size(),
	}, nil
}

// Open resolves an id and opens the underlying file for reading.
func (s *Service) Open(ctx context.Context, collection, id string) (*os.File, *Resolved, error) {
	r, err := s.Resolve(ctx, collection, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(r.AbsolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrStalePath, r.AbsolutePath)
		}
		return nil, nil, fmt.Errorf("open %s: %w", r.AbsolutePath, err)
	}
	return f, r, nil
}

// joinUnderRoot joins a stored slash-separated relative path onto root
// and rejects any result that would land outside root.
func joinUnderRoot(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty relative path", ErrPathEscapesRoot)
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, rel)
	}
	if back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, rel)
	}
	return abs, nil
}
