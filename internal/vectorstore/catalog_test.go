package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogs", "docs.json")

	cat, err := loadCatalog(path, 384, "test-model")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.count())

	meta := FileMetadata{FileName: "report.pdf", RelativePath: "q3/report.pdf", Extension: "pdf"}
	require.NoError(t, cat.upsertAll(map[string]FileMetadata{"id1": meta}))
	require.NoError(t, cat.setRoot("/home/user/docs"))

	// reopen from disk
	reopened, err := loadCatalog(path, 384, "test-model")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.count())
	assert.Equal(t, "/home/user/docs", reopened.root())
	assert.Equal(t, 384, reopened.vectorSize())

	got := reopened.lookup([]string{"id1", "missing"})
	require.Len(t, got, 1)
	assert.Equal(t, meta, got["id1"])
}

func TestCatalog_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")

	cat, err := loadCatalog(path, 384, "small")
	require.NoError(t, err)
	require.NoError(t, cat.upsertAll(map[string]FileMetadata{"id1": {FileName: "a"}}))

	_, err = loadCatalog(path, 768, "big")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCatalog_DeleteMissingIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	cat, err := loadCatalog(path, 4, "")
	require.NoError(t, err)

	require.NoError(t, cat.upsertAll(map[string]FileMetadata{
		"a": {FileName: "a.txt"},
		"b": {FileName: "b.txt"},
	}))
	require.NoError(t, cat.deleteAll([]string{"b", "never-existed"}))

	assert.Equal(t, []string{"a"}, cat.ids())
}

func TestCatalog_IDsSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	cat, err := loadCatalog(path, 4, "")
	require.NoError(t, err)

	require.NoError(t, cat.upsertAll(map[string]FileMetadata{
		"c": {}, "a": {}, "b": {},
	}))
	assert.Equal(t, []string{"a", "b", "c"}, cat.ids())
}
