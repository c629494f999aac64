package vectorstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashEmbedder is a deterministic bag-of-words embedder for tests.
// Texts sharing tokens get higher cosine similarity.
type hashEmbedder struct {
	dim int
}

func (e hashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func (e hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e hashEmbedder) Dimension() int {
	return e.dim
}

// failingEmbedder rejects every call; for provider-failure paths.
type failingEmbedder struct {
	hashEmbedder
}

func (e failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("model offline")
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:  t.TempDir(),
		Model: "test-model",
	}, hashEmbedder{dim: 64}, nil)
	require.NoError(t, err)
	return store
}

func fileRecord(rel string) Record {
	name := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		name = rel[i+1:]
	}
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	return Record{
		ID:       name,
		Document: fmt.Sprintf("file name %s path %s extension %s", name, rel, ext),
		Metadata: FileMetadata{FileName: name, RelativePath: rel, Extension: ext},
	}
}

func TestChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_RequiresPath(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, hashEmbedder{dim: 4}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []Record{
		fileRecord("q3/report.pdf"),
		fileRecord("meetings/notes.txt"),
		fileRecord("pics/image.png"),
	}
	n, err := store.Upsert(ctx, "files", records)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := store.Query(ctx, "files", "file name report.pdf extension pdf", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "report.pdf", hits[0].FileName)
	assert.Equal(t, "q3/report.pdf", hits[0].RelativePath)
	assert.Equal(t, "pdf", hits[0].Extension)

	// scores are distances: ascending, best first
	assert.LessOrEqual(t, hits[0].Score, hits[1].Score)
	assert.LessOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestChromemStore_UpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := fileRecord("a.txt")
	_, err := store.Upsert(ctx, "files", []Record{rec})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "files", []Record{rec})
	require.NoError(t, err)

	info, err := store.Info(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Count)
}

func TestChromemStore_UpsertEmbeddingFailure(t *testing.T) {
	store, err := NewChromemStore(ChromemConfig{Path: t.TempDir()},
		failingEmbedder{hashEmbedder{dim: 4}}, nil)
	require.NoError(t, err)

	n, err := store.Upsert(context.Background(), "files", []Record{fileRecord("a.txt")})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, 0, n)

	// nothing was written
	ids, err := store.ListIDs(context.Background(), "files")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChromemStore_InvalidCollectionName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "Has-Caps", "white space", strings.Repeat("x", 65)} {
		_, err := store.Upsert(ctx, name, []Record{fileRecord("a.txt")})
		assert.ErrorIs(t, err, ErrInvalidCollectionName, name)
		_, err = store.Query(ctx, name, "text", 1)
		assert.ErrorIs(t, err, ErrInvalidCollectionName, name)
	}
}

func TestChromemStore_QueryValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, "files", "text", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = store.Query(ctx, "files", "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestChromemStore_QueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.Query(context.Background(), "never_written", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemStore_QueryLimitCappedAtCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "files", []Record{fileRecord("a.txt"), fileRecord("b.txt")})
	require.NoError(t, err)

	hits, err := store.Query(ctx, "files", "a.txt", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestChromemStore_GetListDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "files", []Record{fileRecord("a.txt"), fileRecord("b.txt")})
	require.NoError(t, err)

	ids, err := store.ListIDs(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, ids)

	metas, err := store.Get(ctx, "files", []string{"a.txt", "missing"})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "a.txt", metas["a.txt"].FileName)

	require.NoError(t, store.Delete(ctx, "files", []string{"a.txt", "missing"}))

	ids, err = store.ListIDs(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, ids)
}

func TestChromemStore_RootAndInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "files", []Record{fileRecord("a.txt")})
	require.NoError(t, err)
	require.NoError(t, store.SetRoot(ctx, "files", "/data/docs"))

	info, err := store.Info(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, "files", info.Name)
	assert.Equal(t, 1, info.Count)
	assert.Equal(t, 64, info.VectorSize)
	assert.Equal(t, "/data/docs", info.Root)
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Path: dir}, hashEmbedder{dim: 64}, nil)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "files", []Record{fileRecord("report.pdf")})
	require.NoError(t, err)
	require.NoError(t, store.SetRoot(ctx, "files", "/data"))
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir}, hashEmbedder{dim: 64}, nil)
	require.NoError(t, err)

	info, err := reopened.Info(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Count)
	assert.Equal(t, "/data", info.Root)

	hits, err := reopened.Query(ctx, "files", "file name report.pdf extension pdf", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "report.pdf", hits[0].FileName)
}

func TestChromemStore_DimensionMismatchOnReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Path: dir}, hashEmbedder{dim: 64}, nil)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "files", []Record{fileRecord("a.txt")})
	require.NoError(t, err)

	reopened, err := NewChromemStore(ChromemConfig{Path: dir}, hashEmbedder{dim: 32}, nil)
	require.NoError(t, err)

	_, err = reopened.Query(ctx, "files", "a.txt", 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = reopened.Upsert(ctx, "files", []Record{fileRecord("b.txt")})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_WriteLock(t *testing.T) {
	store := newTestStore(t)

	release := store.WriteLock("files")
	done := make(chan struct{})
	go func() {
		r := store.WriteLock("files")
		r()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second writer acquired the lock while held")
	default:
	}

	release()
	<-done
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, ValidateCollectionName("file_names"))
	assert.NoError(t, ValidateCollectionName("abc123"))

	for _, name := range []string{"", "UPPER", "with-dash", "dot.name", strings.Repeat("a", 65)} {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}
