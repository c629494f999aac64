package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/vectorstore"
)

// ErrDirectoryNotFound is returned when the scan target does not exist
// or is not a directory.
var ErrDirectoryNotFound = errors.New("directory not found")

// Service populates a vector store collection from a directory tree.
//
// Each regular file becomes one record: the id is a SHA-256 hash of the
// file's root-relative path, so re-scanning an unchanged tree rewrites
// the same records instead of duplicating them. The document text
// surfaces name, path, and extension tokens explicitly, which embeds
// better than a raw path string.
type Service struct {
	store  vectorstore.Store
	logger *zap.Logger
}

// NewService creates an indexing service over the given store.
func NewService(store vectorstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Index scans a directory and upserts one record per regular file.
//
// The whole run holds the collection's writer lock, so a concurrent run
// against the same collection cannot interleave its clear with this
// run's upserts. Records committed before a failure stay committed; the
// run is safe to retry because upsert is idempotent.
func (s *Service) Index(ctx context.Context, opts IndexOptions) (*IndexResult, error) {
	root, err := resolveRoot(opts.Directory)
	if err != nil {
		return nil, err
	}

	release := s.store.WriteLock(opts.Collection)
	defer release()

	cleared := 0
	if opts.ClearFirst {
		existing, err := s.store.ListIDs(ctx, opts.Collection)
		if err != nil {
			return nil, fmt.Errorf("listing existing records: %w", err)
		}
		if len(existing) > 0 {
			if err := s.store.Delete(ctx, opts.Collection, existing); err != nil {
				return nil, fmt.Errorf("clearing collection: %w", err)
			}
			cleared = len(existing)
		}
	}

	records, err := scan(ctx, root, opts.Recursive, opts.ExcludeDirs)
	if err != nil {
		return nil, err
	}

	if len(records) > 0 {
		if _, err := s.store.Upsert(ctx, opts.Collection, records); err != nil {
			return nil, fmt.Errorf("upserting records: %w", err)
		}
	}
	if err := s.store.SetRoot(ctx, opts.Collection, root); err != nil {
		return nil, fmt.Errorf("recording scanned root: %w", err)
	}

	s.logger.Info("indexed directory",
		zap.String("collection", opts.Collection),
		zap.String("root", root),
		zap.Int("files", len(records)),
		zap.Int("cleared", cleared),
		zap.Bool("recursive", opts.Recursive),
	)

	return &IndexResult{
		Collection:   opts.Collection,
		Root:         root,
		FilesIndexed: len(records),
		Cleared:      cleared,
		IndexedAt:    time.Now(),
	}, nil
}

// resolveRoot resolves the scan target to an absolute directory.
func resolveRoot(directory string) (string, error) {
	if directory == "" {
		return "", fmt.Errorf("%w: directory is required", ErrDirectoryNotFound)
	}
	root, err := filepath.Abs(directory)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
		}
		return "", fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, root)
	}
	return root, nil
}

// scan enumerates regular files under root and builds their records.
func scan(ctx context.Context, root string, recursive bool, excludeDirs []string) ([]vectorstore.Record, error) {
	skip := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		skip[d] = true
	}

	var records []vectorstore.Record
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if skip[d.Name()] || !recursive {
				return fs.SkipDir
			}
			return nil
		}
		// Only regular files are indexed; sockets, devices, and
		// symlinks are not.
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		records = append(records, buildRecord(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return records, nil
}

// buildRecord derives the record for one root-relative path.
func buildRecord(rel string) vectorstore.Record {
	// Canonical separators so the same file yields the same id on any
	// platform.
	rel = filepath.ToSlash(rel)
	name := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		name = rel[i+1:]
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")

	return vectorstore.Record{
		ID:       RecordID(rel),
		Document: fmt.Sprintf("file name %s path %s extension %s", name, rel, ext),
		Metadata: vectorstore.FileMetadata{
			FileName:     name,
			RelativePath: rel,
			Extension:    ext,
		},
	}
}

// RecordID returns the deterministic id for a root-relative path:
// the hex SHA-256 of its canonical (slash-separated) form.
func RecordID(relativePath string) string {
	sum := sha256.Sum256([]byte(relativePath))
	return hex.EncodeToString(sum[:])
}
